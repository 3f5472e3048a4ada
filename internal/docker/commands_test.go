package docker

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mmr-tortoise/roundtrip/internal/model"
)

func testCommands() Commands {
	return Commands{Namespace: model.Namespace{Image: "rt-image", Container: "rt-backup"}}
}

// TestCommands_Build verifies the image build argv.
func TestCommands_Build(t *testing.T) {
	assert.Equal(t,
		[]string{"docker", "build", "-t", "rt-image", "-f", "ctx/Dockerfile", "ctx"},
		testCommands().Build("ctx/Dockerfile", "ctx"),
	)
}

// TestCommands_RunBackup verifies mount, name, labels and command order.
func TestCommands_RunBackup(t *testing.T) {
	got := testCommands().RunBackup(
		Mount{Host: "/tmp/rt-backup-1", Container: "/backup"},
		map[string]string{LabelRunID: "r1", LabelManagedBy: ManagedByValue},
		[]string{"bash", "create-backup.sh"},
	)

	assert.Equal(t, []string{
		"docker", "run",
		"-v", "/tmp/rt-backup-1:/backup",
		"--name", "rt-backup",
		"--label", "roundtrip.managed-by=roundtrip",
		"--label", "roundtrip.run-id=r1",
		"rt-image",
		"bash", "create-backup.sh",
	}, got)
}

// TestCommands_RunBackup_NoLabels verifies the bare argv shape.
func TestCommands_RunBackup_NoLabels(t *testing.T) {
	got := testCommands().RunBackup(Mount{Host: "/b", Container: "/backup"}, nil, []string{"bash", "x.sh"})
	assert.Equal(t, []string{"docker", "run", "-v", "/b:/backup", "--name", "rt-backup", "rt-image", "bash", "x.sh"}, got)
}

// TestCommands_ExportRemove verifies both container-name based commands.
func TestCommands_ExportRemove(t *testing.T) {
	c := testCommands()
	assert.Equal(t, []string{"docker", "export", "rt-backup"}, c.Export())
	assert.Equal(t, []string{"docker", "rm", "rt-backup"}, c.Remove())
}

// TestCommands_RunRestore verifies the disposable restore container argv.
func TestCommands_RunRestore(t *testing.T) {
	got := testCommands().RunRestore(
		[]Mount{
			{Host: "/tmp/rt-backup-1", Container: "/backup"},
			{Host: "/work/exported-backup-image.tar", Container: "/exported-backup-image.tar"},
		},
		[]string{"bash", "restore-backup.sh"},
	)

	assert.Equal(t, []string{
		"docker", "run",
		"-v", "/tmp/rt-backup-1:/backup",
		"-v", "/work/exported-backup-image.tar:/exported-backup-image.tar",
		"--rm", "rt-image",
		"bash", "restore-backup.sh",
	}, got)
}

// TestCommands_Binary verifies an alternative engine CLI is honoured.
func TestCommands_Binary(t *testing.T) {
	c := testCommands()
	c.Binary = "podman"
	assert.Equal(t, "podman", c.Export()[0])
	assert.Equal(t, "podman", c.Build("f", "d")[0])
}
