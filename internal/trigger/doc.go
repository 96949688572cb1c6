// ReviewPulse - Adaptive Review Prompt Orchestration for the Mealprint shell
// Copyright 2026 Mealprint Labs
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/mealprint/reviewpulse

// Package trigger decides whether a given occasion warrants showing a
// review prompt. Evaluation is an ordered sequence of gates; the first
// failing gate produces the verdict. Confidence is computed only when
// every gate passes and is a tuning signal, never a gate itself.
package trigger
