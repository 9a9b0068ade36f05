package executor

import (
	"context"
	"io"
	"testing"
	"time"

	units "github.com/docker/go-units"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func TestNewDockerExecutorLimits(t *testing.T) {
	d, err := NewDockerExecutor(DockerOptions{MemoryLimit: "128m", CPUs: 1.5, RunTimeout: 3 * time.Second}, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	assert.Equal(t, int64(128*units.MiB), d.memory)
	assert.Equal(t, int64(1_500_000_000), d.nanoCPUs)
	assert.Equal(t, int64(64), d.pids)
	assert.Equal(t, 3*time.Second, d.timeout)
	assert.Contains(t, d.runtimes, "python")
}

func TestNewDockerExecutorRejectsBadMemory(t *testing.T) {
	_, err := NewDockerExecutor(DockerOptions{MemoryLimit: "plenty"}, quietLogger())
	assert.Error(t, err)
}

func TestDockerUnsupportedLanguageNeverReachesDaemon(t *testing.T) {
	d, err := NewDockerExecutor(DockerOptions{Runtimes: map[string]Runtime{}}, quietLogger())
	require.NoError(t, err)
	defer d.Close()

	_, err = d.Execute(context.Background(), Request{Language: "cobol", Source: "DISPLAY 'HI'."})
	assert.ErrorIs(t, err, ErrUnsupportedLanguage)
}
