// Package api provides HTTP handlers for the control API.
package api

// APIVersion1 is the first control API version
const APIVersion1 = 1

// CurrentAPIVersion is the highest API version supported by this server
const CurrentAPIVersion = APIVersion1

// ServiceName identifies this service in status responses
const ServiceName = "local-server"

// StatusResponse is the response from the /status endpoint
type StatusResponse struct {
	Status        string `json:"status"`
	Service       string `json:"service"`
	APIVersion    int    `json:"api_version"`
	NetworkSource string `json:"network_source"`
}
