package bot

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/jcgentr/article-summarizer/internal/articles"
	"github.com/jcgentr/article-summarizer/internal/domain"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeMessenger struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeMessenger) Send(_ context.Context, message tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.sent = append(f.sent, message)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeMessenger) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeMessenger) Stop() {}

func (f *fakeMessenger) messages() []tgbotapi.MessageConfig {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []tgbotapi.MessageConfig
	for _, c := range f.sent {
		if m, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, m)
		}
	}
	return out
}

func (f *fakeMessenger) callbackAnswers() []string {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []string
	for _, c := range f.requests {
		if cb, ok := c.(tgbotapi.CallbackConfig); ok {
			out = append(out, cb.Text)
		}
	}
	return out
}

type ingestCall struct {
	user domain.User
	url  string
	tag  string
}

type fakeLibrary struct {
	mu          sync.Mutex
	ingests     []ingestCall
	result      articles.IngestResult
	saved       []domain.SavedArticle
	listTag     string
	tags        []string
	readCalls   map[string]bool
	deleted     []string
	usage       articles.Usage
	deleteError error
}

func (f *fakeLibrary) Ingest(_ context.Context, user domain.User, rawURL, rawTag string) articles.IngestResult {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.ingests = append(f.ingests, ingestCall{user: user, url: rawURL, tag: rawTag})
	return f.result
}

func (f *fakeLibrary) ListArticles(_ context.Context, _ domain.User, rawTag string) ([]domain.SavedArticle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.listTag = rawTag
	return f.saved, nil
}

func (f *fakeLibrary) Tags(context.Context, domain.User) ([]string, error) {
	return f.tags, nil
}

func (f *fakeLibrary) SetReadStatus(_ context.Context, _ domain.User, articleID string, hasRead bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.readCalls == nil {
		f.readCalls = make(map[string]bool)
	}
	f.readCalls[articleID] = hasRead
	return nil
}

func (f *fakeLibrary) DeleteArticle(_ context.Context, _ domain.User, articleID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.deleteError != nil {
		return f.deleteError
	}
	f.deleted = append(f.deleted, articleID)
	return nil
}

func (f *fakeLibrary) Usage(context.Context, domain.User) (articles.Usage, error) {
	return f.usage, nil
}

type fakeDiscoverer struct {
	stories []domain.Story
}

func (f *fakeDiscoverer) Top(_ context.Context, n int) ([]domain.Story, error) {
	if n < len(f.stories) {
		return f.stories[:n], nil
	}
	return f.stories, nil
}

func newTestBot(library Library, discover Discoverer, allowed ...int64) (*Bot, *fakeMessenger) {
	messenger := &fakeMessenger{}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newBot(messenger, library, discover, allowed, log), messenger
}

func textMessage(userID int64, text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 7,
		From:      &tgbotapi.User{ID: userID},
		Chat:      &tgbotapi.Chat{ID: userID, Type: "private"},
		Text:      text,
	}
}

func keyboardData(t *testing.T, message tgbotapi.MessageConfig) []string {
	t.Helper()

	markup, ok := message.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	if !ok {
		return nil
	}

	var data []string
	for _, row := range markup.InlineKeyboard {
		for _, button := range row {
			if button.CallbackData != nil {
				data = append(data, *button.CallbackData)
			}
		}
	}
	return data
}

func contains(values []string, want string) bool {
	for _, v := range values {
		if v == want {
			return true
		}
	}
	return false
}

func TestParseSubmission(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		entities []tgbotapi.MessageEntity
		wantOK   bool
		wantURL  string
		wantTag  string
	}{
		{
			"Plain link",
			"https://example.com/post",
			nil,
			true,
			"https://example.com/post",
			"",
		},
		{
			"Link with tag",
			"look at this https://example.com/post #GoLang please",
			nil,
			true,
			"https://example.com/post",
			"golang",
		},
		{
			"Fragment is not a tag",
			"https://example.com/post#section",
			nil,
			true,
			"https://example.com/post#section",
			"",
		},
		{
			"Tag before link",
			"#reading http://example.com/a",
			nil,
			true,
			"http://example.com/a",
			"reading",
		},
		{
			"Text link entity",
			"this article #ml",
			[]tgbotapi.MessageEntity{{Type: "text_link", URL: "https://example.com/hidden"}},
			true,
			"https://example.com/hidden",
			"ml",
		},
		{
			"No link",
			"hello #there",
			nil,
			false,
			"",
			"",
		},
		{
			"Other scheme",
			"ftp://example.com/file",
			nil,
			false,
			"",
			"",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			got, ok, err := parseSubmission(test.text, test.entities)
			if err != nil {
				t.Fatalf("parseSubmission: %v", err)
			}
			if ok != test.wantOK {
				t.Fatalf("expected ok=%v, got %v", test.wantOK, ok)
			}
			if got.URL != test.wantURL || got.Tag != test.wantTag {
				t.Fatalf("expected (%q, %q), got (%q, %q)", test.wantURL, test.wantTag, got.URL, got.Tag)
			}
		})
	}
}

func TestUpdateBackoffSeconds(t *testing.T) {
	tests := []struct {
		in   int
		want int
	}{
		{3, 6},
		{24, 48},
		{48, 60},
		{60, 60},
	}

	for _, test := range tests {
		if got := updateBackoffSeconds(test.in); got != test.want {
			t.Errorf("updateBackoffSeconds(%d) = %d, want %d", test.in, got, test.want)
		}
	}
}

func TestHandleMessageIngestsLink(t *testing.T) {
	library := &fakeLibrary{result: articles.IngestResult{
		Outcome:   articles.OutcomeCreated,
		Message:   "Added article summary with tag: go",
		ArticleID: "article-1",
	}}
	b, messenger := newTestBot(library, nil)

	err := b.handleMessage(context.Background(), textMessage(42, "https://example.com/post #Go"))
	if err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	if len(library.ingests) != 1 {
		t.Fatalf("expected one ingest, got %d", len(library.ingests))
	}

	call := library.ingests[0]
	if call.user.ID != "telegram:42" || call.url != "https://example.com/post" || call.tag != "go" {
		t.Fatalf("unexpected ingest call: %+v", call)
	}

	messages := messenger.messages()
	if len(messages) != 1 {
		t.Fatalf("expected one reply, got %d", len(messages))
	}

	reply := messages[0]
	if !strings.HasPrefix(reply.Text, "✅ ") || !strings.Contains(reply.Text, `tag: go\.`) {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if reply.ParseMode != tgbotapi.ModeMarkdownV2 {
		t.Fatalf("expected MarkdownV2 reply")
	}
	if !contains(keyboardData(t, reply), callbackReadPrefix+"article-1") {
		t.Fatalf("expected article keyboard, got %v", keyboardData(t, reply))
	}
}

func TestHandleMessageQuotaExceeded(t *testing.T) {
	library := &fakeLibrary{result: articles.IngestResult{
		Outcome: articles.OutcomeQuotaExceeded,
		Message: "You've reached your free plan limit.",
	}}
	b, messenger := newTestBot(library, nil)

	if err := b.handleMessage(context.Background(), textMessage(1, "https://example.com/x")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	reply := messenger.messages()[0]
	if !strings.HasPrefix(reply.Text, "⛔️") || strings.Contains(reply.Text, "..") {
		t.Fatalf("unexpected reply: %q", reply.Text)
	}
	if contains(keyboardData(t, reply), callbackRemovePrefix) {
		t.Fatalf("did not expect article buttons")
	}
}

func TestHandleMessageWithoutLink(t *testing.T) {
	library := &fakeLibrary{}
	b, messenger := newTestBot(library, nil)

	if err := b.handleMessage(context.Background(), textMessage(1, "what is this?")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	if len(library.ingests) != 0 {
		t.Fatalf("expected no ingest")
	}
	if got := messenger.messages()[0].Text; got != noLinkText {
		t.Fatalf("unexpected reply: %q", got)
	}
}

func TestHandleListCommand(t *testing.T) {
	author := "Jane_Doe"
	library := &fakeLibrary{saved: []domain.SavedArticle{
		{
			Article: domain.Article{
				ID:      "a1",
				URL:     "https://example.com/one",
				Title:   "One (part 1)",
				Author:  &author,
				Summary: "Short summary.",
			},
			UserTags:        []string{"go"},
			ReadTimeMinutes: 4,
		},
		{
			Article: domain.Article{ID: "a2", URL: "https://example.com/two"},
			HasRead: true,
		},
	}}
	b, messenger := newTestBot(library, nil)

	if err := b.handleMessage(context.Background(), textMessage(1, "/list #go")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	if library.listTag != "go" {
		t.Fatalf("expected tag filter go, got %q", library.listTag)
	}

	messages := messenger.messages()
	// Header, two cards, menu.
	if len(messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(messages))
	}

	first := messages[1]
	for _, want := range []string{`[One \(part 1\)](https://example.com/one)`, `Jane\_Doe`, "4 min read", `\#go`, `Short summary\.`} {
		if !strings.Contains(first.Text, want) {
			t.Fatalf("expected %q in %q", want, first.Text)
		}
	}
	if !contains(keyboardData(t, first), callbackReadPrefix+"a1") {
		t.Fatalf("expected read button for unread article")
	}

	second := messages[2]
	if !strings.HasPrefix(second.Text, "✅") {
		t.Fatalf("expected read marker, got %q", second.Text)
	}
	if !contains(keyboardData(t, second), callbackUnreadPrefix+"a2") {
		t.Fatalf("expected unread button for read article")
	}
}

func TestHandleTopCommand(t *testing.T) {
	discover := &fakeDiscoverer{stories: []domain.Story{
		{Title: "Hello.world", URL: "https://example.com/hello"},
	}}
	b, messenger := newTestBot(&fakeLibrary{}, discover)

	if err := b.handleMessage(context.Background(), textMessage(1, "/top")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	got := messenger.messages()[0].Text
	if !strings.Contains(got, `1\. [Hello\.world](https://example.com/hello)`) {
		t.Fatalf("unexpected stories message: %q", got)
	}
}

func TestHandleUsageCommand(t *testing.T) {
	library := &fakeLibrary{usage: articles.Usage{
		Plan:      domain.PlanFree,
		Used:      2,
		Limit:     5,
		CycleEnds: time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC),
	}}
	b, messenger := newTestBot(library, nil)

	if err := b.handleMessage(context.Background(), textMessage(1, "/usage@summarizer_bot")); err != nil {
		t.Fatalf("handleMessage: %v", err)
	}

	got := messenger.messages()[0].Text
	if !strings.Contains(got, "2 of 5") || !strings.Contains(got, `2025\-02\-01`) {
		t.Fatalf("unexpected usage message: %q", got)
	}
}

func callback(data string) *tgbotapi.CallbackQuery {
	return &tgbotapi.CallbackQuery{
		ID:   "cb-1",
		From: &tgbotapi.User{ID: 5},
		Message: &tgbotapi.Message{
			MessageID: 99,
			Chat:      &tgbotapi.Chat{ID: 5},
		},
		Data: data,
	}
}

func TestReadCallback(t *testing.T) {
	library := &fakeLibrary{}
	b, messenger := newTestBot(library, nil)

	if err := b.handleCallbackQuery(context.Background(), callback(callbackReadPrefix+"a1")); err != nil {
		t.Fatalf("handleCallbackQuery: %v", err)
	}

	if hasRead, ok := library.readCalls["a1"]; !ok || !hasRead {
		t.Fatalf("expected article to be marked read, got %v", library.readCalls)
	}

	if answers := messenger.callbackAnswers(); len(answers) != 1 || answers[0] != "✅ Marked as read." {
		t.Fatalf("unexpected callback answers: %v", answers)
	}

	edit, ok := messenger.sent[0].(tgbotapi.EditMessageReplyMarkupConfig)
	if !ok {
		t.Fatalf("expected keyboard edit, got %T", messenger.sent[0])
	}
	if edit.MessageID != 99 || edit.ChatID != 5 {
		t.Fatalf("unexpected edit target: %+v", edit.BaseEdit)
	}
	if data := *edit.ReplyMarkup.InlineKeyboard[0][0].CallbackData; data != callbackUnreadPrefix+"a1" {
		t.Fatalf("expected unread toggle, got %q", data)
	}
}

func TestRemoveCallbackFailure(t *testing.T) {
	library := &fakeLibrary{deleteError: errors.New("not found")}
	b, messenger := newTestBot(library, nil)

	err := b.handleCallbackQuery(context.Background(), callback(callbackRemovePrefix+"a1"))
	if err == nil {
		t.Fatalf("expected error")
	}

	if answers := messenger.callbackAnswers(); len(answers) != 1 || answers[0] != "❌ Failed." {
		t.Fatalf("unexpected callback answers: %v", answers)
	}
	if len(messenger.sent) != 0 {
		t.Fatalf("did not expect keyboard edit")
	}
}

func TestTagCallbackFiltersList(t *testing.T) {
	library := &fakeLibrary{}
	b, messenger := newTestBot(library, nil)

	if err := b.handleCallbackQuery(context.Background(), callback(callbackTagPrefix+"rust")); err != nil {
		t.Fatalf("handleCallbackQuery: %v", err)
	}

	if library.listTag != "rust" {
		t.Fatalf("expected rust filter, got %q", library.listTag)
	}
	if got := messenger.messages()[0].Text; !strings.Contains(got, `\#rust`) {
		t.Fatalf("unexpected empty list reply: %q", got)
	}
}

func TestUserAllowed(t *testing.T) {
	open, _ := newTestBot(&fakeLibrary{}, nil)
	if !open.userAllowed(1) {
		t.Fatalf("expected everyone to be allowed without a list")
	}

	restricted, _ := newTestBot(&fakeLibrary{}, nil, 10, 20)
	if !restricted.userAllowed(20) || restricted.userAllowed(30) {
		t.Fatalf("unexpected allow list behaviour")
	}
}

func TestHandleUpdateIgnoresDisallowedUser(t *testing.T) {
	library := &fakeLibrary{}
	b, messenger := newTestBot(library, nil, 10)

	b.handleUpdate(context.Background(), &tgbotapi.Update{Message: textMessage(99, "https://example.com/a")})

	if len(library.ingests) != 0 || len(messenger.sent) != 0 {
		t.Fatalf("expected disallowed user to be ignored")
	}
}

func TestGetTagsKeyboardSkipsLongTags(t *testing.T) {
	keyboard := getTagsKeyboard([]string{"a", "b", "c", "d", strings.Repeat("x", 70)})

	// Two rows of tags plus the return row.
	if len(keyboard) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(keyboard))
	}
	if len(keyboard[0]) != tagsKeyboardRowSize || len(keyboard[1]) != 1 {
		t.Fatalf("unexpected row sizes: %d, %d", len(keyboard[0]), len(keyboard[1]))
	}
}

func TestLimitMessage(t *testing.T) {
	short := "hello"
	if got := limitMessage(short); got != short {
		t.Fatalf("unexpected change: %q", got)
	}

	long := strings.Repeat(strings.Repeat("a", 100)+"\n", 60)
	got := limitMessage(long)
	if len([]rune(got)) > telegramMessageMaxLength {
		t.Fatalf("message still too long: %d", len([]rune(got)))
	}
	if !strings.HasSuffix(got, "\n…") {
		t.Fatalf("expected ellipsis suffix")
	}
}
