package gtfs

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDescribe(t *testing.T) {
	info, err := Describe(os.DirFS(writeFeed(t, sampleFeed())))
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, []string{"MTA New York City Transit"}, info.Agencies)
	assert.Equal(t, 1, info.Routes)
}

func TestDescribe_WithoutAgency(t *testing.T) {
	files := sampleFeed()
	delete(files, "agency.txt")

	info, err := Describe(os.DirFS(writeFeed(t, files)))
	require.NoError(t, err)
	assert.Nil(t, info)
}
