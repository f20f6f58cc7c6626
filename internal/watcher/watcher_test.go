package watcher

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestMetaFromFilename(t *testing.T) {
	meta := metaFromFilename("/inbox/wi__7.1.5__2.1__calibration-procedure.pdf")
	require.Equal(t, "wi", meta.DocumentTypeID)
	require.Equal(t, "7.1.5", meta.QMChapter)
	require.Equal(t, "v2.1", meta.Version)
}

func TestMetaFromFilenameDefaults(t *testing.T) {
	meta := metaFromFilename("/inbox/random-scan.pdf")
	require.Equal(t, "sop", meta.DocumentTypeID)
	require.Empty(t, meta.QMChapter)
	require.Equal(t, "v1", meta.Version)
}
