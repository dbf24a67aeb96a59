package cloudinary

import (
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestBuildPublicIDNormalisesName(t *testing.T) {
	now := time.Unix(1700000000, 0)

	require.Equal(t, "Course-map-v2-1700000000", buildPublicID("Course map v2.pdf", now))
	require.Equal(t, "item-file-1700000000", buildPublicID("###.png", now))
}

func TestNewRequiresCredentials(t *testing.T) {
	_, err := New(Config{CloudName: "demo"}, zerolog.Nop())
	require.Error(t, err)
}

