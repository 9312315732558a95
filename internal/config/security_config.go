package config

type SecurityLevel int

const (
	SecurityPublic SecurityLevel = iota // No authentication
	SecurityAccess                      // Access token required
	SecurityAdmin                       // Access token with the admin role required
)

const RentalServicePrefix = "/battery.rental.v1.RentalService/"

// EndpointSecurityConfig maps gRPC methods to their required security level.
// Methods missing from the map require an access token.
var EndpointSecurityConfig = map[string]SecurityLevel{
	// Health - Public
	"/grpc.health.v1.Health/Check": SecurityPublic,

	// RentalService - Access Protected
	RentalServicePrefix + "Checkout":       SecurityAccess,
	RentalServicePrefix + "ReturnBattery":  SecurityAccess,
	RentalServicePrefix + "SearchStations": SecurityAccess,
	RentalServicePrefix + "GetHistory":     SecurityAccess,
}

// RequiredLevel returns the security level for a full gRPC method name.
func RequiredLevel(fullMethod string) SecurityLevel {
	if level, ok := EndpointSecurityConfig[fullMethod]; ok {
		return level
	}
	return SecurityAccess
}
