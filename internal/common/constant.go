package common

// AccessTokenHeaderName is the gRPC metadata key used to carry the
// device access token on outbound requests.
const AccessTokenHeaderName = "access_token"

// SystemResolver is recorded as the resolver of automatically resolved conflicts.
const SystemResolver = "system"
