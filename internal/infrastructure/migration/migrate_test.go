package migration

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMigrateLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	l := migrateLogger{zap.New(core).Sugar()}

	assert.True(t, l.Verbose())
	l.Printf("Finished 20260301120000/u create_payouts (read %v, ran %v)\n", "1ms", "4ms")

	require.Equal(t, 1, recorded.Len())
	assert.Equal(t, "Finished 20260301120000/u create_payouts (read 1ms, ran 4ms)", recorded.All()[0].Message)

	quiet, _ := observer.New(zapcore.InfoLevel)
	assert.False(t, migrateLogger{zap.New(quiet).Sugar()}.Verbose())
}

func TestOptions(t *testing.T) {
	o := options{}
	FromDir("")(&o)
	assert.Nil(t, o.files, "an empty dir keeps the embedded schema")

	FromDir(t.TempDir())(&o)
	assert.NotNil(t, o.files)
}
