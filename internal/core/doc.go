// Package core runs census scans and loads.
//
// It sits between the table scanners in package census and the star schema
// in package database, and is shared by the CLI and the HTTP server.
//
// # Flow
//
//  1. [Service.Scan] reads the nationality and age/sex tables concurrently
//     and reconciles their region names.
//  2. [BuildPlan] turns the matched regions into population facts keyed by
//     birth-year range, nation, territory and gender.
//  3. [Service.Load] upserts the dimension values and inserts the facts in
//     one transaction, then records the run in load_run.
//
// Loads are serialized through a [LoadLimiter].
//
// # Error Handling
//
// Technical errors are mapped to user-friendly messages using [MapError].
// Each category has its own code range:
//
//   - FILE001-FILE007: input files (missing, format, encoding, size)
//   - SHEET001-SHEET004: sheet layout and table kind
//   - LOAD001-LOAD005: load lifecycle (no data, busy, timeout)
//   - DB001-DB007: database errors
package core
