package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	commentpkg "github.com/stormhead-org/fairway/internal/comment"
	eventpkg "github.com/stormhead-org/fairway/internal/event"
	documentgrpcpkg "github.com/stormhead-org/fairway/internal/grpc/document"
	ratelimitpkg "github.com/stormhead-org/fairway/internal/ratelimit"
)

var commentsOptions struct {
	address string
	postID  string
	userID  string
}

var commentsCommand = &cobra.Command{
	Use:   "comments",
	Short: "open a live comment thread",
	Long:  "Reads one command per line: text posts a comment, /reply <id> <text>, /edit <id> <text>, /delete <id> and /like <id>.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return commentsCommandImpl(ctx, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func commentsCommandImpl(ctx context.Context, in io.Reader, out io.Writer) error {
	logger, err := newLogger()
	if err != nil {
		return err
	}
	defer logger.Sync()

	store, conn, err := documentgrpcpkg.Dial(logger, commentsOptions.address)
	if err != nil {
		return err
	}
	defer conn.Close()

	cooldown, err := durationEnv("COMMENT_COOLDOWN", ratelimitpkg.DefaultCommentCooldown)
	if err != nil {
		return err
	}
	writeTimeout, err := durationEnv("WRITE_TIMEOUT", commentpkg.DefaultWriteTimeout)
	if err != nil {
		return err
	}
	reconcileWindow, err := durationEnv("RECONCILE_WINDOW", commentpkg.DefaultReconcileWindow)
	if err != nil {
		return err
	}

	limiter, closeLimiter := newCommentLimiter(cooldown)
	defer closeLimiter()

	var publisher commentpkg.Publisher
	if os.Getenv("KAFKA_HOST") != "" {
		kafkaClient, err := eventpkg.NewKafkaClient(
			os.Getenv("KAFKA_HOST"),
			getenv("KAFKA_PORT", "9092"),
			getenv("KAFKA_TOPIC", "comments"),
			getenv("KAFKA_GROUP", "comments"),
		)
		if err != nil {
			return err
		}
		defer kafkaClient.Close()
		publisher = kafkaClient
	}

	session := commentpkg.NewSession(logger, store, limiter, publisher, nil, commentpkg.Config{
		PostID:          commentsOptions.postID,
		UserID:          commentsOptions.userID,
		WriteTimeout:    writeTimeout,
		ReconcileWindow: reconcileWindow,
	})
	err = session.Open(ctx)
	if err != nil {
		return err
	}
	defer session.Close()

	go func() {
		for {
			select {
			case _, ok := <-session.Changes():
				if !ok {
					return
				}
				printThread(out, session.State())
			case err, ok := <-session.Errors():
				if !ok {
					return
				}
				fmt.Fprintf(out, "! %s\n", describeError(err))
			}
		}
	}()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				return nil
			}
			err := runLine(ctx, session, line, out)
			if err != nil {
				fmt.Fprintf(out, "! %s\n", describeError(err))
			}
		}
	}
}

type commandLine struct {
	name string
	id   string
	text string
}

// parseLine splits "/verb id text" commands; anything else is a new root comment.
func parseLine(line string) (commandLine, error) {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		return commandLine{name: "post", text: line}, nil
	}

	name, rest, _ := strings.Cut(line[1:], " ")
	id, text, _ := strings.Cut(strings.TrimSpace(rest), " ")
	command := commandLine{name: name, id: id, text: strings.TrimSpace(text)}

	switch name {
	case "reply", "edit":
		if command.id == "" || command.text == "" {
			return commandLine{}, fmt.Errorf("usage: /%s <id> <text>", name)
		}
	case "delete", "like":
		if command.id == "" {
			return commandLine{}, fmt.Errorf("usage: /%s <id>", name)
		}
	default:
		return commandLine{}, fmt.Errorf("unknown command /%s", name)
	}
	return command, nil
}

func runLine(ctx context.Context, session *commentpkg.Session, line string, out io.Writer) error {
	if strings.TrimSpace(line) == "" {
		return nil
	}
	command, err := parseLine(line)
	if err != nil {
		return err
	}

	switch command.name {
	case "post":
		return session.SubmitCreate(ctx, command.text, "")
	case "reply":
		return session.SubmitCreate(ctx, command.text, command.id)
	case "edit":
		return session.SubmitEdit(ctx, command.id, command.text)
	case "delete":
		return session.SubmitDelete(ctx, command.id)
	case "like":
		liked, err := session.ToggleLike(ctx, command.id)
		if err != nil {
			return err
		}
		if liked {
			fmt.Fprintf(out, "liked %s\n", command.id)
		} else {
			fmt.Fprintf(out, "unliked %s\n", command.id)
		}
	}
	return nil
}

func printThread(out io.Writer, state commentpkg.State) {
	fmt.Fprintf(out, "--- %d comments\n", len(state.Comments))
	state.Tree.Walk(func(c commentpkg.Comment, level int) {
		marker := ""
		if c.IsPending {
			marker = " (sending)"
		}
		fmt.Fprintf(out, "%s[%s] %s: %s  likes=%d replies=%d%s\n",
			strings.Repeat("  ", level), c.ID, c.AuthorID, c.Content, c.LikeCount, c.ReplyCount, marker)
	})
}

func describeError(err error) string {
	var rateLimited *commentpkg.RateLimitedError
	if errors.As(err, &rateLimited) {
		return fmt.Sprintf("slow down, you can comment again in %d seconds", rateLimited.RemainingSeconds())
	}
	return err.Error()
}

// newCommentLimiter keeps cooldowns in Redis when REDIS_ADDR is set, so they hold
// across processes, and in memory otherwise.
func newCommentLimiter(cooldown time.Duration) (*ratelimitpkg.Limiter, func()) {
	option := ratelimitpkg.WithCooldown(ratelimitpkg.ActionComment, cooldown)

	address := os.Getenv("REDIS_ADDR")
	if address == "" {
		return ratelimitpkg.NewLimiter(ratelimitpkg.NewMemoryStore(), option), func() {}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     address,
		Password: os.Getenv("REDIS_PASSWORD"),
	})
	store := ratelimitpkg.NewRedisStore(rdb, cooldown+time.Hour)
	return ratelimitpkg.NewLimiter(store, option), func() {
		if err := rdb.Close(); err != nil {
			zap.L().Warn("closing redis client", zap.Error(err))
		}
	}
}

func init() {
	commentsCommand.Flags().StringVar(&commentsOptions.address, "address", getenv("GRPC_ADDR", "127.0.0.1:8080"), "document service address")
	commentsCommand.Flags().StringVar(&commentsOptions.postID, "post", "", "post to open")
	commentsCommand.Flags().StringVar(&commentsOptions.userID, "user", "", "user to comment as")
	commentsCommand.MarkFlagRequired("post")
	commentsCommand.MarkFlagRequired("user")
	rootCommand.AddCommand(commentsCommand)
}
