package docker

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// Label keys stamped on the backup container. All keys share the
// "roundtrip." prefix so they never collide with labels from other tools.
const (
	// LabelPrefix is the common prefix for all roundtrip labels.
	LabelPrefix = "roundtrip."

	// LabelManagedBy marks containers created by roundtrip.
	// Key: "roundtrip.managed-by", Value: always ManagedByValue.
	LabelManagedBy = LabelPrefix + "managed-by"

	// LabelRunID records the ULID of the run that created the container.
	LabelRunID = LabelPrefix + "run-id"

	// LabelImage records the image tag the container was started from.
	LabelImage = LabelPrefix + "image"

	// LabelCreatedAt records the run start time in RFC3339 (UTC).
	LabelCreatedAt = LabelPrefix + "created-at"
)

// ManagedByValue is the constant value for the LabelManagedBy label.
const ManagedByValue = "roundtrip"

// RunLabels is the metadata roundtrip attaches to its backup container.
type RunLabels struct {
	RunID     string
	Image     string
	CreatedAt time.Time
}

// BuildLabels converts run metadata into a Docker label map.
func BuildLabels(rl RunLabels) map[string]string {
	return map[string]string{
		LabelManagedBy: ManagedByValue,
		LabelRunID:     rl.RunID,
		LabelImage:     rl.Image,
		LabelCreatedAt: rl.CreatedAt.UTC().Format(time.RFC3339),
	}
}

// ParseLabels reconstructs run metadata from a container's labels.
// It fails if the container was not created by roundtrip or if any
// required label is missing or malformed.
func ParseLabels(labels map[string]string) (*RunLabels, error) {
	requiredKeys := []string{
		LabelManagedBy,
		LabelRunID,
		LabelImage,
		LabelCreatedAt,
	}

	var missing []string
	for _, key := range requiredKeys {
		if _, ok := labels[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("missing required Docker labels: %s", strings.Join(missing, ", "))
	}

	if labels[LabelManagedBy] != ManagedByValue {
		return nil, fmt.Errorf(
			"label %s has unexpected value %q (expected %q)",
			LabelManagedBy, labels[LabelManagedBy], ManagedByValue,
		)
	}

	createdAt, err := time.Parse(time.RFC3339, labels[LabelCreatedAt])
	if err != nil {
		return nil, fmt.Errorf("invalid label %s: %w", LabelCreatedAt, err)
	}

	return &RunLabels{
		RunID:     labels[LabelRunID],
		Image:     labels[LabelImage],
		CreatedAt: createdAt,
	}, nil
}

// IsManaged reports whether labels mark a roundtrip-created container.
func IsManaged(labels map[string]string) bool {
	return labels[LabelManagedBy] == ManagedByValue
}

// LabelArgs renders a label map as `--label key=value` flags in key
// order, so the same labels always produce the same argv.
func LabelArgs(labels map[string]string) []string {
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	args := make([]string, 0, len(keys)*2)
	for _, k := range keys {
		args = append(args, "--label", k+"="+labels[k])
	}
	return args
}
