// Package dataverse is a read-only client for the Dataverse Web API.
//
// A single Client holds the process-wide state: the client-credentials token,
// the logical-name to entity-set mappings and the gate that bounds how many
// fetches may hit the upstream at once. Page requests retry 429, 5xx and
// transport failures along a fixed backoff ladder and refresh the credential
// once on 401.
package dataverse
