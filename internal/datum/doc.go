// Package datum decodes the governance protocol's datums and redeemers into
// typed records.
//
// Every decoder returns a Result tagged with a plutus.Outcome instead of
// failing on unexpected input. Most outputs on chain are not instances of
// the protocol, so NotThisShape is an ordinary answer, and callers branch on
// the tag rather than on error types.
//
// Redeemers that select between several spend reasons are closed variant
// types (GovRedeemer, TallyRedeemer, TreasurerRedeemer) meant to be matched
// with a type switch.
package datum
