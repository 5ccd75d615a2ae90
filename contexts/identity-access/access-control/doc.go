// Package accesscontrol implements platform access control inside Drydock.
//
// It owns user registration with the first-user superuser bootstrap, the
// admin grant relation, app ownership, per-app sharing permissions, and the
// access decision function collaborator services call.
//
// Layering:
// - domain: core entities, the decision function, errors
// - application: commands/queries/workers using explicit ports
// - ports: stable boundaries for persistence/cache/events
// - adapters: concrete HTTP, memory, postgres, and event publisher implementations
// - transport: module-private DTOs for HTTP contracts
//
// Boundary notes:
// - Keep this module self-contained under identity-access context.
// - Do not import other context adapters into domain/application.
package accesscontrol
