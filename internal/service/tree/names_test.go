package service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	apperrors "github.com/weiwangfds/ditdrive/internal/errors"
)

func TestNormalizeName(t *testing.T) {
	cases := map[string]string{
		"  Docs  ":                   "Docs",
		"Tom & Jerry":                "Tom & Jerry",
		"<b>bold</b> name":           "<b>bold</b> name",
		"<script>alert(1)</script>x": "<script>alert(1)</script>x",
		"x<y":                        "x<y",
		"a <b> c.txt":                "a <b> c.txt",
		"&lt;escaped&gt;":            "&lt;escaped&gt;",
		"tab\tname":                  "tabname",
		"报告 2024":                    "报告 2024",
	}
	for in, want := range cases {
		got, err := NormalizeName(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	for _, bad := range []string{"", "   ", ".", "..", " \x00 ", strings.Repeat("a", MaxNameLength+1)} {
		_, err := NormalizeName(bad)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrInvalidName), "%q", bad)
	}
}

func TestNormalizeFileName(t *testing.T) {
	got, err := NormalizeFileName(`C:\Users\me\report.pdf`)
	require.NoError(t, err)
	assert.Equal(t, "report.pdf", got)

	got, err = NormalizeFileName("../../etc/passwd")
	require.NoError(t, err)
	assert.Equal(t, "passwd", got)

	for _, name := range []string{"<notes>.md", "report<final>.pdf"} {
		got, err = NormalizeFileName(name)
		require.NoError(t, err)
		assert.Equal(t, name, got)
	}

	_, err = NormalizeFileName("dir/")
	assert.Error(t, err)
}

func TestNewStoredName(t *testing.T) {
	name := NewStoredName("Report.PDF")
	assert.True(t, strings.HasSuffix(name, ".pdf"))
	assert.Len(t, name, 32+4)
	assert.NotEqual(t, name, NewStoredName("Report.PDF"))

	assert.Len(t, NewStoredName("noext"), 32)
	assert.Len(t, NewPublicID(), 32)
}
