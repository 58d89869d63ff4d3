package project

// Project is a registered telemetry source. Secret is the shared signing
// secret devices use to authenticate submissions; rotation is out of scope.
// KeyLabels optionally maps observed event keys to display labels for the
// organization matrix; unmapped keys pass through unchanged.
type Project struct {
	ID        string
	Secret    string
	KeyLabels map[string]string
}
