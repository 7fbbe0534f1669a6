package store

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound   = errors.New("not found")
	ErrNotAMember = errors.New("not a member of this group")
	ErrEmailTaken = errors.New("email already registered")
)

// Postgres error codes the store translates
const (
	codeUniqueViolation     = "23505"
	codeForeignKeyViolation = "23503"
	codeInvalidText         = "22P02"
)

// recentGroupMessages is how many messages ListGroups denormalizes per group
const recentGroupMessages = 20

// DB is the subset of pgxpool.Pool the store uses
type DB interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

var _ DB = (*pgxpool.Pool)(nil)

// Store is the relational data access layer
type Store struct {
	db DB
}

// New creates a store on top of a pool
func New(db DB) *Store {
	return &Store{db: db}
}

// translate maps driver errors onto the store's sentinels
func translate(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case codeUniqueViolation:
			return ErrEmailTaken
		case codeForeignKeyViolation, codeInvalidText:
			return ErrNotFound
		}
	}
	return err
}
