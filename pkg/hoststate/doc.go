/*
Package hoststate maintains the in-memory table of back-end pool states.

The repository is the only shared mutable resource in the scheduler. It maps
a composite "host#pool" key to an immutable HostState built wholesale from
the latest capability report. Writers replace values copy-on-write with
per-key atomicity; readers take a consistent point-in-time Snapshot without
blocking in-flight updates beyond the map swap itself.

# Staleness

A back end whose volume service stops reporting silently ages out:

  - Snapshot() excludes any state older than the liveness window, so the
    scheduler never places a volume on a back end whose service has
    crashed but whose last-known capacity still looked attractive.
  - Get() and List() still return stale entries (marked ServiceState down)
    for the administrative capability query.
  - Monitor periodically prunes aged entries entirely and emits
    backend.stale events.

Aging out is reduced availability, not an error; the next report from the
back end repopulates the table. Nothing here is persisted; after a restart
the table rebuilds from the next round of reports.

# Concurrency

Stale reads are acceptable for the duration of one liveness window and are
self-correcting on the next report, so readers take no per-entry locks and
no transaction ever spans multiple keys. Two concurrent placement requests
may read the same free capacity and race for it; that race is absorbed by
the scheduler's bounded retry loop, not prevented here.
*/
package hoststate
