package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/LeventeLantos/zenvia-go/client"
	"github.com/LeventeLantos/zenvia-go/model"
)

type sendOptions struct {
	text       string
	fileURL    string
	fileMime   string
	caption    string
	templateID string
	fields     map[string]string
}

// contents builds the message contents in a fixed order: text, file, template.
func (o sendOptions) contents() ([]model.Content, error) {
	var contents []model.Content
	if o.text != "" {
		contents = append(contents, model.NewTextContent(o.text))
	}
	if o.fileURL != "" {
		contents = append(contents, model.NewFileContent(o.fileURL, o.fileMime, o.caption))
	}
	if o.templateID != "" {
		contents = append(contents, model.NewTemplateContent(o.templateID, o.fields))
	}
	if len(contents) == 0 {
		return nil, errors.New("nothing to send: set --text, --file-url or --template-id")
	}
	return contents, nil
}

// channelHelp lists each channel with the content types it accepts.
func channelHelp() string {
	var b strings.Builder
	b.WriteString("Channels and the contents they accept:\n")
	for _, ch := range model.Channels() {
		types := ch.SupportedContents()
		names := make([]string, len(types))
		for i, t := range types {
			names[i] = string(t)
		}
		fmt.Fprintf(&b, "  %-9s %s\n", ch, strings.Join(names, ", "))
	}
	return b.String()
}

func sendCmd() *cobra.Command {
	var opts sendOptions

	cmd := &cobra.Command{
		Use:   "send <channel> <from> <to>",
		Short: "Send a message on a channel",
		Long:  "Send a message on a channel.\n\n" + channelHelp(),
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := checkOutputFormat(); err != nil {
				return err
			}
			channel, err := model.ParseChannel(args[0])
			if err != nil {
				return err
			}
			contents, err := opts.contents()
			if err != nil {
				return err
			}

			zc, err := client.New(cfg.Zenvia.ClientConfig(logger))
			if err != nil {
				return err
			}
			defer zc.Close()

			msg, err := zc.SendMessage(cmd.Context(), channel, model.NewMessageRequest(args[1], args[2], contents...))
			if err != nil {
				return err
			}
			return render(cmd.OutOrStdout(), outputFormat, msg)
		},
	}

	f := cmd.Flags()
	f.StringVar(&opts.text, "text", "", "text content")
	f.StringVar(&opts.fileURL, "file-url", "", "file content URL")
	f.StringVar(&opts.fileMime, "file-mime", "", "file content MIME type")
	f.StringVar(&opts.caption, "caption", "", "file content caption")
	f.StringVar(&opts.templateID, "template-id", "", "template content ID")
	f.StringToStringVar(&opts.fields, "field", nil, "template field as key=value, repeatable")
	return cmd
}
