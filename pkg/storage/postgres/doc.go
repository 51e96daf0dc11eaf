// Package postgres opens the service's PostgreSQL and Redis connections and
// owns the database schema. Stores in other packages take the *sql.DB and
// redis.UniversalClient built here.
package postgres
