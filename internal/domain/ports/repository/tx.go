package repository

// Tx is an infra-defined transaction handle (pgx.Tx for Postgres).
// Repositories MUST accept nil to run outside a transaction.
type Tx interface{}
