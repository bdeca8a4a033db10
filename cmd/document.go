package cmd

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/emrgen/wikistore/internal/doc"
)

var wikiName string

func init() {
	rootCmd.AddCommand(getDocCmd())
	rootCmd.AddCommand(putDocCmd())
	rootCmd.AddCommand(deleteDocCmd())
	rootCmd.AddCommand(listDocsCmd())
	rootCmd.AddCommand(historyCmd())
	rootCmd.AddCommand(backlinksCmd())

	rootCmd.AddCommand(lockCmd)
	lockCmd.SetHelpCommand(&cobra.Command{Use: "no-help", Hidden: true})
	lockCmd.AddCommand(sweepLocksCmd())
}

func bindWikiFlag(command *cobra.Command) {
	command.Flags().StringVarP(&wikiName, "wiki", "w", "xwiki", "wiki name")
}

func docKey(ref string) doc.Key {
	key, err := doc.ParseKey(wikiName, ref)
	if err != nil {
		color.Red("invalid document reference: %v", err)
		os.Exit(1)
	}
	return key
}

func getDocCmd() *cobra.Command {
	var version string

	command := &cobra.Command{
		Use:   "get <Space.Name>",
		Short: "get a document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			ctx := context.Background()
			key := docKey(args[0])

			var d *doc.Document
			var err error
			if version != "" {
				v, perr := doc.ParseVersion(version)
				if perr != nil {
					color.Red("invalid version: %v", perr)
					return
				}
				d, err = s.LoadDocumentRevision(ctx, key, v)
			} else {
				d, err = s.LoadDocument(ctx, key)
			}
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			if d.IsNew {
				color.Yellow("document %s does not exist", key.String())
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Field", "Value"})
			table.Append([]string{"Reference", key.String()})
			table.Append([]string{"Title", d.Title})
			table.Append([]string{"Version", d.Version.String()})
			table.Append([]string{"Author", d.Author})
			table.Append([]string{"Date", d.Date.Format("2006-01-02 15:04:05")})
			table.Render()
			fmt.Println(d.Content)
		},
	}

	bindWikiFlag(command)
	command.Flags().StringVarP(&version, "version", "v", "", "document version")

	return command
}

func putDocCmd() *cobra.Command {
	var title string
	var content string
	var author string
	var minor bool

	command := &cobra.Command{
		Use:   "put <Space.Name>",
		Short: "create or update a document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			ctx := context.Background()
			key := docKey(args[0])

			d, err := s.LoadDocument(ctx, key)
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			if title != "" {
				d.SetTitle(title)
			}
			if content != "" {
				d.SetContent(content)
			}
			d.Author = author
			d.MinorEdit = minor
			if err := s.SaveDocument(ctx, d); err != nil {
				color.Red("error: %v", err)
				return
			}
			color.Green("saved %s as version %s", key.String(), d.Version.String())
		},
	}

	bindWikiFlag(command)
	command.Flags().StringVarP(&title, "title", "t", "", "document title")
	command.Flags().StringVarP(&content, "content", "c", "", "document content")
	command.Flags().StringVarP(&author, "author", "a", "XWiki.Admin", "author reference")
	command.Flags().BoolVarP(&minor, "minor", "m", false, "minor edit")

	return command
}

func deleteDocCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "delete <Space.Name>",
		Short: "delete a document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			ctx := context.Background()
			key := docKey(args[0])

			d, err := s.LoadDocument(ctx, key)
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			if d.IsNew {
				color.Yellow("document %s does not exist", key.String())
				return
			}
			if err := s.DeleteDocument(ctx, d); err != nil {
				color.Red("error: %v", err)
				return
			}
			color.Green("deleted %s", key.String())
		},
	}

	bindWikiFlag(command)

	return command
}

func listDocsCmd() *cobra.Command {
	var limit int
	var offset int

	command := &cobra.Command{
		Use:   "list",
		Short: "list documents of a wiki",
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			names, err := s.SearchDocumentNames(context.Background(), wikiName, "", limit, offset)
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			for _, name := range names {
				fmt.Println(name)
			}
		},
	}

	bindWikiFlag(command)
	command.Flags().IntVarP(&limit, "limit", "l", 0, "max results")
	command.Flags().IntVarP(&offset, "offset", "o", 0, "results offset")

	return command
}

func historyCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "history <Space.Name>",
		Short: "list the revisions of a document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			ctx := context.Background()
			key := docKey(args[0])

			ar, err := s.LoadArchive(ctx, key)
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			if ar.Len() == 0 {
				color.Yellow("document %s has no revisions", key.String())
				return
			}

			table := tablewriter.NewWriter(os.Stdout)
			table.SetHeader([]string{"Version", "Author", "Date", "Comment"})
			for _, node := range ar.Nodes {
				table.Append([]string{
					node.Version.String(),
					node.Author,
					node.Date.Format("2006-01-02 15:04:05"),
					node.Comment,
				})
			}
			table.Render()
		},
	}

	bindWikiFlag(command)

	return command
}

func backlinksCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "backlinks <Space.Name>",
		Short: "list documents linking to a document",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			s := openStore()
			defer s.Close()

			key := docKey(args[0])
			names, err := s.LoadBacklinks(context.Background(), key.Wiki, key.FullName())
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			for _, name := range names {
				fmt.Println(name)
			}
		},
	}

	bindWikiFlag(command)

	return command
}

var lockCmd = &cobra.Command{
	Use:   "lock",
	Short: "lock commands",
}

func sweepLocksCmd() *cobra.Command {
	command := &cobra.Command{
		Use:   "sweep",
		Short: "expire stale advisory locks",
		Run: func(cmd *cobra.Command, args []string) {
			cfg := loadConfig()
			s := openStore()
			defer s.Close()

			expired, err := s.ExpireLocks(context.Background(), wikiName, time.Now().Add(-cfg.Locks.TTL))
			if err != nil {
				color.Red("error: %v", err)
				return
			}
			color.Green("expired %d locks", expired)
		},
	}

	bindWikiFlag(command)

	return command
}
