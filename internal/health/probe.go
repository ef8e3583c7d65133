package health

import (
	"context"
	"cropstudy/internal/wps"
	"fmt"
)

// Getter fetches a URL and returns the response body.
type Getter interface {
	Get(ctx context.Context, url, credential string) ([]byte, error)
}

// WPSProbe checks that the processing service answers GetCapabilities.
func WPSProbe(gw Getter, serviceURL, credential string) ReadinessChecker {
	return ReadyFunc(func(ctx context.Context) error {
		capURL, err := wps.CapabilitiesURL(serviceURL)
		if err != nil {
			return err
		}
		if _, err := gw.Get(ctx, capURL, credential); err != nil {
			return fmt.Errorf("processing service: %w", err)
		}
		return nil
	})
}

// URLProbe checks that a GET of url succeeds.
func URLProbe(gw Getter, url, credential string) ReadinessChecker {
	return ReadyFunc(func(ctx context.Context) error {
		_, err := gw.Get(ctx, url, credential)
		return err
	})
}
