/*
Package weigher implements the soft-preference stage of the scheduling
pipeline.

Hosts surviving the filter chain are scored by each configured weigher,
the raw scores are min-max normalized to [0,1] per weigher, and the
normalized scores are combined as a multiplier-weighted sum. Normalization
keeps a weigher with naturally large units (gigabytes) from drowning out
one with small units (volume counts); the multiplier's magnitude expresses
relative importance and its sign flips preference into aversion.

Built-in weighers: capacity (free or virtual-free gigabytes),
volume_number (inverse of volumes already on the host), goodness
(user-authored 0-100 expression).

The final ranking sorts descending by combined weight with exact ties
broken by back-end key. Determinism is a requirement, not a nicety: the
scheduler re-dispatches retries strictly down this list, and tests assert
bit-identical rankings for identical inputs.
*/
package weigher
