// Package experiment runs a trusted code path (the control) side by side with
// one or more candidate code paths at a live call site and compares their
// outcomes. Only the control's value or error is ever returned to the caller;
// candidate results, candidate failures and failures of the experiment's own
// moving parts (comparison, ignore rules, enablement, publishing) never change
// what the caller sees.
//
// A single invocation goes through the following steps:
//
//  1. The gate decides whether candidates run at all. It is closed when no
//     candidates are registered, when the Enabler says no, or when the RunIf
//     predicate says no. A closed gate runs the control alone and nothing is
//     published.
//  2. The orderer arranges control and candidates. The default is a uniform
//     shuffle so that ordering-dependent bugs surface.
//  3. The behaviors run in batches of Settings.Concurrency. Behaviors of one
//     batch overlap; batches run one after the other.
//  4. Each candidate observation is compared against the control observation
//     and classified as matched, mismatched, ignored or cancelled.
//  5. The Result is handed to the Publisher.
//
// Internal failures are reported to Settings.OnFailure tagged with the
// Operation that failed, after the safe default for that operation has been
// applied.
package experiment
