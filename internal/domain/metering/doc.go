// Package metering contains the usage metering and quota enforcement core.
//
// Every tenant owns exactly one UsageLedger per billing period. The ledger
// tracks consumption of the two metered resources (voice-call seconds and
// SMS messages) against the entitlement derived from the tenant's plan tier,
// plus pay-as-you-go credit and call capacity rolled over from the previous
// period. Rollover is lazy: the ledger is reconciled on every touch rather
// than by a timer, so staleness cannot accumulate regardless of which event
// path reaches the ledger first.
//
// The package is persistence-agnostic. Aggregates compute state transitions;
// repository interfaces defined here are implemented in
// internal/infrastructure/persistence.
package metering
