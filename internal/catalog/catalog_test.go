package catalog

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/enrollment/internal/domain"
)

func TestDefaultCatalogSeedsChessClub(t *testing.T) {
	activities := Default()
	require.NotEmpty(t, activities)

	var chess *domain.Activity
	for i := range activities {
		if activities[i].Name == "Chess Club" {
			chess = &activities[i]
		}
	}
	require.NotNil(t, chess)
	require.Contains(t, chess.Participants, "michael@mergington.edu")

	_, err := domain.NewRegistry(activities)
	require.NoError(t, err, "built-in catalog must pass registry validation")
}

func TestDefaultReturnsFreshSlices(t *testing.T) {
	first := Default()
	first[0].Participants[0] = "changed@mergington.edu"

	second := Default()
	require.Equal(t, "michael@mergington.edu", second[0].Participants[0])
}

func TestParseYAML(t *testing.T) {
	doc := `
activities:
  - name: Chess Club
    description: Learn strategies
    schedule: Fridays
    max_participants: 12
    participants: [michael@mergington.edu, daniel@mergington.edu]
  - name: Art Club
    description: Painting
    schedule: Thursdays
    max_participants: 15
`
	activities, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, activities, 2)
	require.Equal(t, "Chess Club", activities[0].Name)
	require.Equal(t, 12, activities[0].MaxParticipants)
	require.Equal(t, []string{"michael@mergington.edu", "daniel@mergington.edu"}, activities[0].Participants)
	require.Empty(t, activities[1].Participants)
}

func TestParseJSON(t *testing.T) {
	doc := `{"activities": [{"name": "Math Club", "description": "Problems", "schedule": "Tuesdays", "max_participants": 10, "participants": ["james@mergington.edu"]}]}`

	activities, err := Parse(strings.NewReader(doc))
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, "Math Club", activities[0].Name)
}

func TestParseRejectsBadDocuments(t *testing.T) {
	cases := map[string]string{
		"empty":         "",
		"no activities": "activities: []\n",
		"unknown field": "activities:\n  - name: A\n    capacity: 3\n",
		"wrong type":    "activities:\n  - name: A\n    max_participants: lots\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(strings.NewReader(doc))
			require.Error(t, err)
		})
	}
}

func TestFileSourceLoadsFromDisk(t *testing.T) {
	path := filepath.Join(t.TempDir(), "catalog.yaml")
	require.NoError(t, os.WriteFile(path, []byte("activities:\n  - name: Drama Club\n    max_participants: 20\n"), 0o600))

	activities, err := FileSource{Path: path}.Load(context.Background())
	require.NoError(t, err)
	require.Len(t, activities, 1)
	require.Equal(t, "Drama Club", activities[0].Name)

	_, err = FileSource{Path: filepath.Join(t.TempDir(), "missing.yaml")}.Load(context.Background())
	require.ErrorIs(t, err, os.ErrNotExist)
}

func TestExampleCatalogFileIsValid(t *testing.T) {
	activities, err := LoadFile(filepath.Join("..", "..", "configs", "catalog.example.yaml"))
	require.NoError(t, err)

	_, err = domain.NewRegistry(activities)
	require.NoError(t, err)
}
