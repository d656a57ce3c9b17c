package changes

import (
	"context"
	"log/slog"
	"strings"

	"github.com/slipway-dev/slipway/internal/models"
)

// Detect computes the ChangeSet for a revision range: the services whose
// source paths intersect the modified paths. A modified path under any of
// the shared release-template paths marks every service as changed.
func Detect(ctx context.Context, differ Differ, services []models.ServiceDescriptor, sharedPaths []string, oldRev, newRev string) (models.ChangeSet, error) {
	paths, err := differ.Changes(ctx, oldRev, newRev)
	if err != nil {
		return models.ChangeSet{}, err
	}

	changed := Match(paths, services, sharedPaths)
	slog.Info("computed change set",
		"modified_paths", len(paths),
		"changed_services", len(changed))

	return models.ChangeSet{
		Services:      changed,
		ModifiedPaths: paths,
	}, nil
}

// Match returns the services whose source paths intersect the modified
// paths, in the given service order. It is a pure function of its inputs.
// Shared template paths invalidate all services: templates affect every
// release, so any hit returns the full set.
func Match(paths []string, services []models.ServiceDescriptor, sharedPaths []string) []models.ServiceDescriptor {
	if len(paths) == 0 {
		return nil
	}

	for _, p := range paths {
		if matchesAny(p, sharedPaths) {
			slog.Debug("shared path modified, all services invalidated", "path", p)
			return services
		}
	}

	var changed []models.ServiceDescriptor
	for _, svc := range services {
		for _, p := range paths {
			if matchesAny(p, svc.SourcePaths) {
				changed = append(changed, svc)
				break
			}
		}
	}
	return changed
}

// Intersects reports whether any modified path falls under any of the given
// prefixes. Used for the pipeline activation check against trigger paths.
func Intersects(paths, prefixes []string) bool {
	for _, p := range paths {
		if matchesAny(p, prefixes) {
			return true
		}
	}
	return false
}

func matchesAny(path string, prefixes []string) bool {
	for _, prefix := range prefixes {
		if matchesPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// matchesPrefix reports whether path is prefix itself or lies under it.
// Matching is path-segment aware: "vote" matches "vote/app.py" but not
// "vote2/app.py".
func matchesPrefix(path, prefix string) bool {
	prefix = strings.TrimSuffix(prefix, "/")
	if prefix == "" {
		return false
	}
	if path == prefix {
		return true
	}
	return strings.HasPrefix(path, prefix+"/")
}
