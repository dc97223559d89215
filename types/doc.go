// Package types is the alerting engine's data model: Tenant, Trigger,
// Condition, Dampening, Data, ConditionEvaluation, Alert, and the action
// binding types. Condition and Data are implemented as tagged sum types —
// a discriminator field plus one populated variant struct — with a
// dispatch table in package rules doing the matching, per the closed
// variant set called for in the design notes. There is no inheritance
// here and no interface polymorphism for the variants themselves.
package types
