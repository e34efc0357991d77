// Package database implements the domain repositories on PostgreSQL via pgx.
//
// All slot and booking mutations run inside transactions that row-lock the
// affected TimeSlot, which is the single serialization point per slot. Every
// query is parameterized; there is no dynamic SQL assembly.
package database
