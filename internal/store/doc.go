// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package store persists the two durable review records (user metrics
// and review settings) in BadgerDB under fixed keys, with an in-memory
// cache in front.
//
// The error policy is asymmetric on purpose:
//
//   - Reads are defensive. A missing record, a storage failure, or a
//     malformed payload yields a fully-defaulted (or sanitized) record,
//     and the failure is logged and counted, never returned. The engine
//     must keep working with whatever it can reconstruct.
//   - Writes are strict. A durable-write failure is returned to the
//     caller so state is never silently lost.
//
// Read-time sanitization clamps counters to >= 0, drops unknown enum
// values, empties non-array milestone fields, and repairs invalid
// timestamps. First/last-open timestamps fall back to "now"; the
// last-review-prompt timestamp falls back to "unset". The two policies
// differ deliberately: the prompt timestamp gates trigger eligibility
// and must default to "never prompted", not "prompted just now".
//
// The cache is not lock-free magic: concurrent read-modify-write races
// resolve last-write-wins on the durable layer, and compound updates
// must be expressed as a single patch.
package store
