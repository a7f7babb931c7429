// Package catalog keeps an in-memory record of placed volumes,
// snapshots and consistency-group zone pins. The resolver consults it
// to turn volume references in hints into hosts and zones, and the
// volume-number weigher consults it to count placements the back ends
// have not yet folded into their capability reports.
package catalog
