package version

// Tag is set at build time:
// go build -ldflags="-X 'github.com/flokiorg/lngateway/pkg/version.Tag=v0.1.0'"
var Tag = "v0.0.0-dev"
