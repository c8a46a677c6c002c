// Package binding extracts, coerces, and validates request parameters
// against typed specifications declared by handlers.
//
// Specs are compiled once at registration time; Compile rejects
// contradictory or malformed specs so that binding failures at request
// time always describe the incoming request, never the configuration.
// Bind collects every violation instead of stopping at the first one,
// so a single response can report all invalid fields.
package binding
