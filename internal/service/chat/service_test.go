package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mnuel1/chat-fieldiq/internal/domain/fielderr"
	"github.com/mnuel1/chat-fieldiq/internal/domain/models"
)

// fakeConversations mimics the Mongo-backed store: every read decodes an
// independent snapshot, never a pointer into shared state.
type fakeConversations struct {
	mu            sync.Mutex
	conversations map[string]*models.Conversation
	messages      []models.ChatMessage
	replacedWith  []map[string]any
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{conversations: map[string]*models.Conversation{}}
}

func (f *fakeConversations) seed(id, userID string, form map[string]any) *models.Conversation {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &models.Conversation{ID: id, UserID: userID, FormData: form, CreatedAt: time.Now().UTC()}
	f.conversations[id] = c
	return c
}

func (f *fakeConversations) snapshot(c *models.Conversation) *models.Conversation {
	clone := *c
	clone.FormData = make(map[string]any, len(c.FormData))
	for key, value := range c.FormData {
		clone.FormData[key] = value
	}
	return &clone
}

func (f *fakeConversations) storedForm(conversationID string) map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.conversations[conversationID].FormData
}

func (f *fakeConversations) GetOrCreate(_ context.Context, userID string) (*models.Conversation, error) {
	f.mu.Lock()
	for _, c := range f.conversations {
		if c.UserID == userID {
			defer f.mu.Unlock()
			return f.snapshot(c), nil
		}
	}
	f.mu.Unlock()
	f.seed("conv-"+userID, userID, map[string]any{})
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot(f.conversations["conv-"+userID]), nil
}

func (f *fakeConversations) Get(_ context.Context, conversationID string) (*models.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return nil, nil
	}
	return f.snapshot(c), nil
}

func (f *fakeConversations) ReplaceFormData(_ context.Context, conversationID string, form map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.conversations[conversationID]
	if !ok {
		return fmt.Errorf("conversation %s not found", conversationID)
	}
	if form == nil {
		form = map[string]any{}
	}
	c.FormData = form
	f.replacedWith = append(f.replacedWith, form)
	return nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, conversationID string, role models.MessageRole, text string, metadata map[string]any) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, models.ChatMessage{
		ConversationID: conversationID,
		Role:           role,
		Message:        text,
		Metadata:       metadata,
		CreatedAt:      time.Now().UTC(),
	})
	return nil
}

func (f *fakeConversations) RecentMessages(_ context.Context, conversationID string, limit int) ([]models.ChatMessage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.ChatMessage
	for _, m := range f.messages {
		if m.ConversationID == conversationID {
			out = append(out, m)
		}
	}
	if len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

type fakeExtractor struct {
	extraction   ExtractionResult
	extractFn    func(ExtractionRequest) (ExtractionResult, error)
	extractErr   error
	extractCalls int
	lastRequest  ExtractionRequest

	classified       Intent
	classifierResult ExtractionResult
}

func (f *fakeExtractor) Extract(_ context.Context, req ExtractionRequest) (ExtractionResult, error) {
	f.extractCalls++
	f.lastRequest = req
	if f.extractFn != nil {
		return f.extractFn(req)
	}
	if f.extractErr != nil {
		return ExtractionResult{}, f.extractErr
	}
	return f.extraction, nil
}

func (f *fakeExtractor) ClassifyIntent(_ context.Context, _ string) (Intent, ExtractionResult, error) {
	return f.classified, f.classifierResult, nil
}

func (f *fakeExtractor) DetectLanguage(_ context.Context, _ string) (string, error) {
	return "English", nil
}

type fakeChatPrograms struct {
	program *models.FeedProgram
	product *models.ActiveFeedProduct
}

func (f *fakeChatPrograms) GetActiveProgram(_ context.Context, farmerID string) (*models.FeedProgram, error) {
	if f.program == nil {
		return nil, fmt.Errorf("%w: no active feed program for farmer %s", fielderr.ErrNotFound, farmerID)
	}
	return f.program, nil
}

func (f *fakeChatPrograms) ActiveFeedProduct(_ context.Context, _ string) (*models.ActiveFeedProduct, error) {
	return f.product, nil
}

type fakeKB struct {
	entries  []models.FAQEntry
	failures int
}

func (f *fakeKB) InsertFAQ(_ context.Context, entry models.FAQEntry) error {
	if f.failures > 0 {
		f.failures--
		return errors.New("transient store failure")
	}
	f.entries = append(f.entries, entry)
	return nil
}

type fakeProfiles struct {
	profiles map[string]*models.UserProfile
}

func (f *fakeProfiles) GetUserProfile(_ context.Context, farmerID string) (*models.UserProfile, error) {
	return f.profiles[farmerID], nil
}

type completionRecorder struct {
	calls    int
	lastForm map[string]any
	err      error
}

func (r *completionRecorder) fn(_ context.Context, _, _ string, formData map[string]any, _ ExtractionResult) error {
	r.calls++
	r.lastForm = formData
	return r.err
}

const (
	testUser = "farmer-1"
	testConv = "conv-1"
)

type fixture struct {
	conversations *fakeConversations
	extractor     *fakeExtractor
	programs      *fakeChatPrograms
	kb            *fakeKB
	health        *completionRecorder
	performance   *completionRecorder
	svc           *Service
}

func newFixture() *fixture {
	conversations := newFakeConversations()
	extractor := &fakeExtractor{}
	programs := &fakeChatPrograms{
		program: &models.FeedProgram{ID: "prog-1", FarmerID: testUser, Status: models.ProgramActive, AnimalQuantity: 100},
	}
	kb := &fakeKB{}
	profiles := &fakeProfiles{profiles: map[string]*models.UserProfile{
		testUser: {ID: testUser, Name: "Ana", CompanyID: "co-1"},
	}}
	health := &completionRecorder{}
	performance := &completionRecorder{}

	svc := NewService(conversations, extractor, programs, kb, profiles, Completions{
		HealthIncident: health.fn,
		PerformanceLog: performance.fn,
	}, 6, nil)

	return &fixture{
		conversations: conversations,
		extractor:     extractor,
		programs:      programs,
		kb:            kb,
		health:        health,
		performance:   performance,
		svc:           svc,
	}
}

func intentID(i Intent) *int {
	v := int(i)
	return &v
}

func TestMergeFieldsTruthyOnly(t *testing.T) {
	existing := map[string]any{"symptoms": "lethargy", "affected_count": 3}
	incoming := map[string]any{
		"symptoms":       nil,
		"affected_count": nil,
		"feed_info":      "starter crumble",
		"actions_taken":  "  ",
		"unknown_key":    "dropped",
	}

	merged := mergeFields(existing, incoming, healthIncidentFields)

	assert.Equal(t, "lethargy", merged["symptoms"])
	assert.Equal(t, 3, merged["affected_count"])
	assert.Equal(t, "starter crumble", merged["feed_info"])
	assert.NotContains(t, merged, "actions_taken")
	assert.NotContains(t, merged, "unknown_key")
}

func TestMergeFieldsKeepsZeroAndFalse(t *testing.T) {
	merged := mergeFields(nil, map[string]any{
		"mortality_count":   0,
		"average_weight_kg": 1.2,
	}, performanceLogFields)

	assert.Equal(t, 0, merged["mortality_count"])
	assert.Equal(t, 1.2, merged["average_weight_kg"])
}

func TestHandleTurnRejectsEmptyPrompt(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Prompt: "   "})
	require.ErrorIs(t, err, fielderr.ErrValidation)
}

func TestHandleTurnUnknownFarmer(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: "ghost", Prompt: "hello"})
	require.ErrorIs(t, err, fielderr.ErrNotFound)
}

func TestHandleTurnConversationNotFound(t *testing.T) {
	f := newFixture()

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: "missing",
		Prompt:         "hello",
	})
	require.ErrorIs(t, err, fielderr.ErrNotFound)
}

func TestHandleTurnOutOfScopeLeavesNoTrace(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{})
	f.extractor.classified = IntentOutOfScope
	f.extractor.classifierResult = ExtractionResult{Response: "I can only help with farm topics.", Category: "out_of_scope"}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{UserID: testUser, Prompt: "fix my car"})
	require.NoError(t, err)

	assert.Equal(t, IntentOutOfScope, result.Intent)
	assert.Equal(t, "I can only help with farm topics.", result.Response)
	assert.Empty(t, f.conversations.messages)
	assert.Empty(t, f.kb.entries)
}

func TestHandleLogMergesAndPersists(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{"symptoms": "lethargy"})
	f.extractor.extraction = ExtractionResult{
		NewFields:  map[string]any{"incident_type": "sickness", "symptoms": nil},
		NextAction: "ask_affected_count",
		Response:   "How many birds are affected?",
		Category:   "health",
	}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "my chickens look sick",
		IntentID:       intentID(IntentHealthLog),
	})
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, "ask_affected_count", result.NextAction)
	assert.Equal(t, "lethargy", result.FormData["symptoms"])
	assert.Equal(t, "sickness", result.FormData["incident_type"])
	assert.Equal(t, result.FormData, f.conversations.conversations[testConv].FormData)
	assert.Zero(t, f.health.calls)

	// user and model messages recorded, exchange mirrored
	require.Len(t, f.conversations.messages, 2)
	assert.Equal(t, models.RoleUser, f.conversations.messages[0].Role)
	assert.Equal(t, models.RoleModel, f.conversations.messages[1].Role)
	require.Len(t, f.kb.entries, 1)
	assert.Equal(t, "health", f.kb.entries[0].Category)
}

func TestHandleLogCompletionClearsForm(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{
		"incident_type":  "sickness",
		"affected_count": 3,
	})
	f.extractor.extraction = ExtractionResult{
		NewFields:  map[string]any{"actions_taken": "isolated the birds"},
		NextAction: NextActionComplete,
		Response:   "Logged, thank you!",
		Category:   "health",
	}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "I isolated them",
		IntentID:       intentID(IntentHealthLog),
	})
	require.NoError(t, err)

	assert.True(t, result.Completed)
	assert.Empty(t, result.FormData)
	assert.Equal(t, 1, f.health.calls)
	assert.Equal(t, "isolated the birds", f.health.lastForm["actions_taken"])
	assert.Equal(t, 3, f.health.lastForm["affected_count"])
	assert.Empty(t, f.conversations.conversations[testConv].FormData)
}

func TestHandleLogCompletionFailurePreservesForm(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{"average_weight_kg": 1.5})
	f.performance.err = errors.New("mongo unavailable")
	f.extractor.extraction = ExtractionResult{
		NewFields:  map[string]any{"mortality_count": 2},
		NextAction: NextActionComplete,
		Response:   "Logged!",
		Category:   "performance",
	}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "2 died today",
		IntentID:       intentID(IntentPerformanceLog),
	})
	require.NoError(t, err)

	assert.False(t, result.Completed)
	assert.Equal(t, 1, f.performance.calls)
	assert.Equal(t, 1.5, result.FormData["average_weight_kg"])
	assert.Equal(t, 2, result.FormData["mortality_count"])
	assert.Equal(t, result.FormData, f.conversations.conversations[testConv].FormData)
}

func TestHandleLogExtractionFailureLeavesFormUntouched(t *testing.T) {
	f := newFixture()
	original := map[string]any{"symptoms": "lethargy"}
	f.conversations.seed(testConv, testUser, original)
	f.extractor.extractErr = fmt.Errorf("%w: malformed model output", fielderr.ErrExtraction)

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "some noise",
		IntentID:       intentID(IntentHealthLog),
	})
	require.ErrorIs(t, err, fielderr.ErrExtraction)

	assert.Empty(t, f.conversations.replacedWith)
	assert.Equal(t, original, f.conversations.conversations[testConv].FormData)
	assert.Empty(t, f.conversations.messages)
}

func TestHandleLogWithoutActiveProgram(t *testing.T) {
	f := newFixture()
	f.programs.program = nil
	f.conversations.seed(testConv, testUser, map[string]any{})

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "my chickens are sick",
		IntentID:       intentID(IntentHealthLog),
	})
	require.NoError(t, err)

	assert.Equal(t, "no_active_program", result.Category)
	assert.Equal(t, "suggest_start_program", result.NextAction)
	assert.NotEmpty(t, result.Response)
	assert.Zero(t, f.extractor.extractCalls)
	assert.Zero(t, f.health.calls)
}

func TestConcurrentTurnsKeepBothMergedFields(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{})
	f.extractor.extractFn = func(req ExtractionRequest) (ExtractionResult, error) {
		fields := map[string]any{"symptoms": "lethargy"}
		if req.Utterance == "maybe heat stress" {
			fields = map[string]any{"suspected_cause": "heat stress"}
		}
		return ExtractionResult{
			NewFields:  fields,
			NextAction: "ask_follow_up",
			Response:   "Noted.",
			Category:   "health",
		}, nil
	}

	var wg sync.WaitGroup
	for _, prompt := range []string{"they look tired", "maybe heat stress"} {
		wg.Add(1)
		go func(prompt string) {
			defer wg.Done()
			_, err := f.svc.HandleTurn(context.Background(), TurnRequest{
				UserID:         testUser,
				ConversationID: testConv,
				Prompt:         prompt,
				IntentID:       intentID(IntentHealthLog),
			})
			assert.NoError(t, err)
		}(prompt)
	}
	wg.Wait()

	// Neither turn's merge may overwrite the other's: the second merge has
	// to start from the form state the first one persisted.
	form := f.conversations.storedForm(testConv)
	assert.Equal(t, "lethargy", form["symptoms"])
	assert.Equal(t, "heat stress", form["suspected_cause"])
}

func TestHandleTurnRereadsFormUnderLock(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{})
	f.extractor.extraction = ExtractionResult{
		NewFields:  map[string]any{"suspected_cause": "heat stress"},
		NextAction: "ask_follow_up",
		Response:   "Noted.",
		Category:   "health",
	}

	// Another turn lands between this turn's conversation lookup and its
	// merge. The first store read happens in conversation resolution, so a
	// write after that point is visible only to a re-read inside the
	// critical section.
	reads := 0
	f.svc.conversations = &interceptingConversations{
		fakeConversations: f.conversations,
		onGet: func() {
			reads++
			if reads == 1 {
				require.NoError(t, f.conversations.ReplaceFormData(context.Background(), testConv, map[string]any{"symptoms": "lethargy"}))
			}
		},
	}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "maybe heat stress",
		IntentID:       intentID(IntentHealthLog),
	})
	require.NoError(t, err)

	assert.Equal(t, "lethargy", result.FormData["symptoms"])
	assert.Equal(t, "heat stress", result.FormData["suspected_cause"])
	assert.GreaterOrEqual(t, reads, 2)
}

// interceptingConversations runs a hook before every Get so tests can stage
// writes at precise points in a turn.
type interceptingConversations struct {
	*fakeConversations
	onGet func()
}

func (i *interceptingConversations) Get(ctx context.Context, conversationID string) (*models.Conversation, error) {
	i.onGet()
	return i.fakeConversations.Get(ctx, conversationID)
}

func TestPracticeLogRequiresActiveProgram(t *testing.T) {
	f := newFixture()
	f.programs.program = nil
	f.conversations.seed(testConv, testUser, map[string]any{})

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "we mix rice bran with the feed",
		IntentID:       intentID(IntentPracticeLog),
	})
	require.NoError(t, err)

	assert.Equal(t, "no_active_program", result.Category)
	assert.Equal(t, "suggest_start_program", result.NextAction)
	assert.Zero(t, f.extractor.extractCalls)
	assert.Empty(t, f.conversations.messages)
}

func TestAdvisoryTurnMirrorsFAQWithRetry(t *testing.T) {
	f := newFixture()
	f.conversations.seed(testConv, testUser, map[string]any{})
	f.kb.failures = 1
	f.extractor.extraction = ExtractionResult{
		Response: "Feed starter crumble up to day 14.",
		Category: "feeding",
	}

	result, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "what should chicks eat?",
		IntentID:       intentID(IntentGeneralQuestion),
	})
	require.NoError(t, err)

	assert.Equal(t, "Feed starter crumble up to day 14.", result.Response)
	assert.Nil(t, result.FormData)
	require.Len(t, f.kb.entries, 1)
	assert.Equal(t, "what should chicks eat?", f.kb.entries[0].Question)
}

func TestExtractionRequestCarriesProgramContext(t *testing.T) {
	f := newFixture()
	f.programs.product = &models.ActiveFeedProduct{
		FeedName:   "Starter Crumble",
		FeedStage:  "starter",
		DaysOnFeed: 5,
		FeedGoal:   "early growth",
	}
	f.conversations.seed(testConv, testUser, map[string]any{})
	f.extractor.extraction = ExtractionResult{Response: "ok", Category: "feeding"}

	_, err := f.svc.HandleTurn(context.Background(), TurnRequest{
		UserID:         testUser,
		ConversationID: testConv,
		Prompt:         "how is my flock doing?",
		IntentID:       intentID(IntentGeneralQuestion),
	})
	require.NoError(t, err)

	assert.Contains(t, f.extractor.lastRequest.ProgramContext, "Starter Crumble")
	assert.Contains(t, f.extractor.lastRequest.ProgramContext, "Days on Feed: 5")
	assert.Equal(t, "English", f.extractor.lastRequest.Language)
}
