// Package urls holds the documentation links printed by the CLI and the
// watch view, so they can be updated in one place.
//
// Usage:
//
//	import "github.com/muurk/onvifdiscovery/internal/urls"
//
//	fmt.Printf("For more information, see: %s\n", urls.TroubleshootingGuide)
package urls
