package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"edustore/internal/util"
	"edustore/pkg/ai"
	"edustore/pkg/domain"
)

// ChatTurn is one prior exchange supplied by the client.
type ChatTurn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ChatAnswer is the tutor's reply plus the chapter it was scoped to.
type ChatAnswer struct {
	Response string     `json:"response"`
	Chapter  ChapterRef `json:"chapter"`
}

// ChapterRef identifies the chapter a chat answer refers to.
type ChapterRef struct {
	ID            string `json:"id"`
	Title         string `json:"title"`
	ChapterNumber int    `json:"chapterNumber"`
}

// AskChapterQuestion answers a student question scoped to a chapter. The
// prompt primes the model with the chapter's subject/class/book context and
// an acknowledgement turn, then replays the chat history before the
// question. The exchange is persisted to the chat log.
func (a *App) AskChapterQuestion(ctx context.Context, user domain.User, chapterID, question string, history []ChatTurn) (ChatAnswer, error) {
	question = strings.TrimSpace(question)
	if question == "" || strings.TrimSpace(chapterID) == "" {
		return ChatAnswer{}, validationErr("Question and chapterId are required")
	}
	chapter, ok, err := a.store.GetChapter(chapterID)
	if err != nil {
		return ChatAnswer{}, fmt.Errorf("fetch chapter: %w", err)
	}
	if !ok {
		return ChatAnswer{}, ErrChapterNotFound
	}

	turns := buildTutorTurns(chapter, history, question)
	response, err := a.generator.GenerateChat(ctx, a.model, turns)
	if err != nil {
		util.LoggerFromContext(ctx).Error("chatbot generate failed", "chapterId", chapterID, "error", err)
		return ChatAnswer{}, ErrAIUnavailable
	}

	a.logExchange(ctx, user, chapter, question, response)

	return ChatAnswer{
		Response: response,
		Chapter: ChapterRef{
			ID:            chapter.ID,
			Title:         chapter.Title,
			ChapterNumber: chapter.ChapterNumber,
		},
	}, nil
}

// QuickAnswer returns a brief answer for the search overlay.
func (a *App) QuickAnswer(ctx context.Context, question string) (string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return "", ErrQuestionRequired
	}
	prompt := fmt.Sprintf(`You are NCERT Master Bot, an AI tutor for NCERT curriculum (Class 1-12, India).

Answer this question briefly and helpfully (2-3 sentences max):
%q

If it's about NCERT subjects (Math, Science, English, Hindi, Social Science, Physics, Chemistry, Biology, etc.), give a direct educational answer.
If it's not related to education/NCERT, politely say you can help with NCERT topics.
Keep the response concise and student-friendly.`, question)
	return a.generator.GenerateText(ctx, a.model, "", prompt)
}

func buildTutorTurns(chapter domain.Chapter, history []ChatTurn, question string) []ai.Message {
	var subjectName string
	var class int
	var bookTitle string
	if chapter.Book != nil {
		class = chapter.Book.Class
		bookTitle = chapter.Book.Title
		if chapter.Book.Subject != nil {
			subjectName = chapter.Book.Subject.Name
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, `You are NCERT Master Bot, an expert AI tutor specializing in NCERT curriculum. You are currently helping a student with:

Subject: %s
Class: %s
Book: %s
Chapter %d: %s
`, orUnknown(subjectName), orUnknownInt(class), orUnknown(bookTitle), chapter.ChapterNumber, chapter.Title)
	if chapter.Description != "" {
		fmt.Fprintf(&sb, "Chapter Description: %s\n", chapter.Description)
	}
	sb.WriteString(`
Your role:
1. Answer questions related to this chapter's content accurately
2. Explain concepts in simple, easy-to-understand language
3. Provide examples when helpful
4. If asked about topics outside this chapter, politely redirect to the chapter content
5. Be encouraging and supportive to students
6. Use bullet points and formatting for clarity when needed
7. If you don't know something specific to the chapter, say so honestly

Remember: You are an educational assistant focused on helping students understand NCERT content.`)

	ack := fmt.Sprintf(
		`I understand! I'm NCERT Master Bot, ready to help you with Chapter %d: %q from your %s textbook for Class %s. Feel free to ask me any questions about this chapter!`,
		chapter.ChapterNumber, chapter.Title, orUnknown(subjectName), orUnknownInt(class))

	turns := make([]ai.Message, 0, len(history)+3)
	turns = append(turns,
		ai.Message{Role: "user", Text: sb.String() + "\n\nPlease acknowledge you understand your role."},
		ai.Message{Role: "model", Text: ack},
	)
	for _, turn := range history {
		role := "user"
		if turn.Role != "user" {
			role = "model"
		}
		turns = append(turns, ai.Message{Role: role, Text: turn.Content})
	}
	return append(turns, ai.Message{Role: "user", Text: question})
}

func (a *App) logExchange(ctx context.Context, user domain.User, chapter domain.Chapter, question, response string) {
	logger := util.LoggerFromContext(ctx)
	chatContext := map[string]string{
		"chapterTitle": chapter.Title,
	}
	if chapter.Book != nil {
		chatContext["bookTitle"] = chapter.Book.Title
	}
	now := time.Now().UTC()
	for _, msg := range []domain.ChatMessage{
		{
			ID:        util.NewID(),
			UserID:    user.ID,
			ChapterID: chapter.ID,
			Role:      "user",
			Content:   question,
			Context:   chatContext,
			CreatedAt: now,
		},
		{
			ID:        util.NewID(),
			UserID:    user.ID,
			ChapterID: chapter.ID,
			Role:      "model",
			Content:   response,
			Context:   chatContext,
			CreatedAt: now.Add(time.Millisecond),
		},
	} {
		if err := a.store.AppendChatMessage(msg); err != nil {
			logger.Warn("chat log append failed", "error", err)
		}
	}
}

// ChatHistory returns the stored conversation for (user, chapter).
func (a *App) ChatHistory(userID, chapterID string, limit int) ([]domain.ChatMessage, error) {
	if limit <= 0 {
		limit = 50
	}
	return a.store.ListChatMessages(userID, chapterID, limit)
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}

func orUnknownInt(n int) string {
	if n == 0 {
		return "Unknown"
	}
	return fmt.Sprintf("%d", n)
}
