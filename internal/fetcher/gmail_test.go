package fetcher

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"smart-task-ingest-go/internal/model"
)

type memStateStore struct {
	state *model.WatchState
}

func (s *memStateStore) GetWatchState(_ string) (*model.WatchState, error) {
	return s.state, nil
}

func (s *memStateStore) UpsertWatchState(state *model.WatchState) error {
	s.state = state
	return nil
}

// fakeGmail serves a paginated history list and message bodies, recording how
// the client walks the pages.
type fakeGmail struct {
	historyPages map[string]*gmail.ListHistoryResponse
	messagePages map[string]*gmail.ListMessagesResponse
	pagesServed  []string
}

func (f *fakeGmail) handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := r.URL.Query().Get("pageToken")

		switch {
		case strings.Contains(r.URL.Path, "/history"):
			f.pagesServed = append(f.pagesServed, "history:"+token)
			json.NewEncoder(w).Encode(f.historyPages[token])

		case strings.Contains(r.URL.Path, "/messages/"):
			id := r.URL.Path[strings.LastIndex(r.URL.Path, "/")+1:]
			json.NewEncoder(w).Encode(&gmail.Message{
				Id: id,
				Payload: &gmail.MessagePart{
					MimeType: "text/plain",
					Headers: []*gmail.MessagePartHeader{
						{Name: "Subject", Value: "Subject " + id},
						{Name: "From", Value: "alice@example.com"},
					},
					Body: &gmail.MessagePartBody{
						Data: base64.URLEncoding.EncodeToString([]byte("body " + id)),
					},
				},
			})

		case strings.Contains(r.URL.Path, "/messages"):
			f.pagesServed = append(f.pagesServed, "list:"+token)
			json.NewEncoder(w).Encode(f.messagePages[token])

		default:
			http.NotFound(w, r)
		}
	})
}

func newFakeSource(t *testing.T, fake *fakeGmail, state *model.WatchState) (*GmailSource, *memStateStore) {
	t.Helper()

	server := httptest.NewServer(fake.handler())
	t.Cleanup(server.Close)

	service, err := gmail.NewService(context.Background(),
		option.WithEndpoint(server.URL), option.WithHTTPClient(server.Client()))
	require.NoError(t, err)

	store := &memStateStore{state: state}
	return &GmailSource{
		service:   service,
		userEmail: "ingest@example.com",
		state:     store,
	}, store
}

func historyPage(next string, historyID uint64, messageIDs ...string) *gmail.ListHistoryResponse {
	var history []*gmail.History
	for _, id := range messageIDs {
		history = append(history, &gmail.History{
			MessagesAdded: []*gmail.HistoryMessageAdded{{Message: &gmail.Message{Id: id}}},
		})
	}
	return &gmail.ListHistoryResponse{
		History:       history,
		NextPageToken: next,
		HistoryId:     historyID,
	}
}

func TestFetchNewFollowsHistoryPages(t *testing.T) {
	// Every page reports the mailbox's current history id; only the messages
	// differ. All pages must be drained before the cursor moves.
	fake := &fakeGmail{historyPages: map[string]*gmail.ListHistoryResponse{
		"":       historyPage("page-2", 500, "m1"),
		"page-2": historyPage("page-3", 500, "m2"),
		"page-3": historyPage("", 500, "m3"),
	}}

	source, store := newFakeSource(t, fake, &model.WatchState{
		EmailAddress:  "ingest@example.com",
		LastHistoryID: 100,
	})

	emails, err := source.FetchNew(context.Background())
	require.NoError(t, err)

	require.Len(t, emails, 3)
	ids := []string{emails[0].MessageID, emails[1].MessageID, emails[2].MessageID}
	assert.Equal(t, []string{"m1", "m2", "m3"}, ids)
	assert.Equal(t, "body m2", emails[1].Body)

	assert.Equal(t, []string{"history:", "history:page-2", "history:page-3"}, fake.pagesServed)
	assert.Equal(t, uint64(500), store.state.LastHistoryID)
}

func TestFetchNewSinglePageAdvancesCursor(t *testing.T) {
	fake := &fakeGmail{historyPages: map[string]*gmail.ListHistoryResponse{
		"": historyPage("", 200, "m1"),
	}}

	source, store := newFakeSource(t, fake, &model.WatchState{
		EmailAddress:  "ingest@example.com",
		LastHistoryID: 100,
	})

	emails, err := source.FetchNew(context.Background())
	require.NoError(t, err)
	require.Len(t, emails, 1)
	assert.Equal(t, uint64(200), store.state.LastHistoryID)
}

func TestFetchRecentFollowsMessagePages(t *testing.T) {
	fake := &fakeGmail{messagePages: map[string]*gmail.ListMessagesResponse{
		"": {
			Messages:      []*gmail.Message{{Id: "r1"}},
			NextPageToken: "page-2",
		},
		"page-2": {
			Messages: []*gmail.Message{{Id: "r2"}},
		},
	}}

	// No cursor yet: FetchNew falls back to listing recent messages.
	source, _ := newFakeSource(t, fake, nil)

	emails, err := source.FetchNew(context.Background())
	require.NoError(t, err)

	require.Len(t, emails, 2)
	assert.Equal(t, "r1", emails[0].MessageID)
	assert.Equal(t, "r2", emails[1].MessageID)
	assert.Equal(t, []string{"list:", "list:page-2"}, fake.pagesServed)
}
