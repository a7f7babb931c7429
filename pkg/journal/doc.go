// Package journal persists an append-only audit trail of scheduling
// decisions and worker outcomes in a local bbolt database. It exists
// for operators, not for the scheduler: placement state is rebuilt from
// capability reports after a restart and never read back from here.
package journal
