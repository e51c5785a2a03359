// Command mkvtag reads and edits Matroska/WebM Tags in place.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/mmomtchev/mkvtag"
)

var (
	tagName  string
	tagValue string
	verbose  bool
	log      = logrus.New()
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "mkvtag",
		Short: "Read and edit Matroska/WebM tags in place",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if verbose {
				log.SetLevel(logrus.DebugLevel)
			}
		},
	}
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "emit structured diagnostics to stderr")

	root.AddCommand(newReadCmd(), newSetCmd(), newRemoveCmd(), newListCmd())
	return root
}

func newReadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "read <file>",
		Short: "Print a tag's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mkvtag.Open(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			log.WithField("file", args[0]).Debug("opened")

			value, err := c.GetTagString(tagName)
			if err != nil {
				if errors.Is(err, mkvtag.ErrTagNotFound) || errors.Is(err, mkvtag.ErrNoTags) {
					fmt.Println("not found")
					return nil
				}
				return err
			}
			fmt.Println(value)
			return nil
		},
	}
	cmd.Flags().StringVar(&tagName, "name", "", "tag name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newSetCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "set <file>",
		Short: "Set a tag's value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mkvtag.OpenReadWrite(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			log.WithField("file", args[0]).Debug("opened")

			if err := c.SetTagString(tagName, tagValue); err != nil {
				return err
			}
			log.WithFields(logrus.Fields{"name": tagName, "value": tagValue}).Debug("tag written")
			return nil
		},
	}
	cmd.Flags().StringVar(&tagName, "name", "", "tag name")
	cmd.Flags().StringVar(&tagValue, "value", "", "tag value")
	cmd.MarkFlagRequired("name")
	cmd.MarkFlagRequired("value")
	return cmd
}

func newRemoveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "remove <file>",
		Short: "Remove a tag",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mkvtag.OpenReadWrite(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			log.WithField("file", args[0]).Debug("opened")

			if err := c.RemoveTag(tagName); err != nil {
				return err
			}
			log.WithField("name", tagName).Debug("tag removed")
			return nil
		},
	}
	cmd.Flags().StringVar(&tagName, "name", "", "tag name")
	cmd.MarkFlagRequired("name")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list <file>",
		Short: "Dump the full tag tree",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := mkvtag.Open(args[0])
			if err != nil {
				return err
			}
			defer c.Close()
			log.WithField("file", args[0]).Debug("opened")

			collection, err := c.ReadTags()
			if err != nil {
				return err
			}
			printCollection(collection)
			return nil
		},
	}
}

func printCollection(c *mkvtag.Collection) {
	for _, tag := range c.Tags {
		fmt.Printf("Tag targetType=%d\n", tag.TargetType)
		for _, st := range tag.SimpleTags {
			printSimpleTag(st, 1)
		}
	}
}

func printSimpleTag(st *mkvtag.SimpleTag, depth int) {
	indent := ""
	for i := 0; i < depth; i++ {
		indent += "  "
	}
	value := "<binary>"
	if st.Value != nil {
		value = *st.Value
	}
	fmt.Printf("%s%s=%s (lang=%s)\n", indent, st.Name, value, st.Language)
	for _, nested := range st.Nested {
		printSimpleTag(nested, depth+1)
	}
}
