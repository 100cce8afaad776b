package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	commentpkg "github.com/stormhead-org/fairway/internal/comment"
	documentgrpcpkg "github.com/stormhead-org/fairway/internal/grpc/document"
)

var postOptions struct {
	address string
	userID  string
	title   string
}

var postCommand = &cobra.Command{
	Use:   "post",
	Short: "create a post to comment on",
	Long:  "",
	RunE: func(cmd *cobra.Command, args []string) error {
		logger, err := newLogger()
		if err != nil {
			return err
		}
		defer logger.Sync()

		store, conn, err := documentgrpcpkg.Dial(logger, postOptions.address)
		if err != nil {
			return err
		}
		defer conn.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
		defer cancel()

		postID, err := commentpkg.NewRepository(store).CreatePost(ctx, postOptions.userID, postOptions.title)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), postID)
		return nil
	},
}

func init() {
	postCommand.Flags().StringVar(&postOptions.address, "address", getenv("GRPC_ADDR", "127.0.0.1:8080"), "document service address")
	postCommand.Flags().StringVar(&postOptions.userID, "user", "", "author of the post")
	postCommand.Flags().StringVar(&postOptions.title, "title", "", "post title")
	postCommand.MarkFlagRequired("user")
	rootCommand.AddCommand(postCommand)
}
