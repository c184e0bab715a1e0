package main

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/joseph-ayodele/resume-parser/internal/app"
	"github.com/joseph-ayodele/resume-parser/internal/server"
)

func newParseCmd(opts *rootOptions) *cobra.Command {
	var (
		timestamps string
		remote     string
		authKey    string
		noRunLog   bool
	)
	cmd := &cobra.Command{
		Use:   "parse <file>",
		Short: "Parse one resume and print the result as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if remote != "" {
				if authKey == "" && opts.cfg.Server.AuthEnable {
					authKey = opts.cfg.Server.AuthKey
				}
				return parseRemote(cmd, remote, authKey, args[0], timestamps)
			}
			return parseLocal(cmd, opts, args[0], timestamps, noRunLog)
		},
	}
	cmd.Flags().StringVar(&timestamps, "timestamps", "s", "process time format: s, ms or hms")
	cmd.Flags().StringVar(&remote, "server", "", "gRPC address of a running resume-parser (parse locally when empty)")
	cmd.Flags().StringVar(&authKey, "auth-key", "", "bearer key for --server (defaults to AUTH_KEY when auth is enabled)")
	cmd.Flags().BoolVar(&noRunLog, "no-runlog", false, "do not record the run in the database")
	return cmd
}

func parseLocal(cmd *cobra.Command, opts *rootOptions, path, timestamps string, noRunLog bool) error {
	ctx := cmd.Context()
	a, err := app.Build(ctx, opts.cfg, opts.logger, app.Options{NoRunLog: noRunLog})
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	out, err := a.Parser.ParseFile(ctx, path, timestamps)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(out.Response)
}

func parseRemote(cmd *cobra.Command, addr, authKey, path, timestamps string) error {
	body, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	conn, err := grpc.NewClient(addr,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(grpc.MaxCallSendMsgSize(len(body)*2+1<<20)),
	)
	if err != nil {
		return err
	}
	defer conn.Close()

	req, err := structpb.NewStruct(map[string]any{
		"file_name":  filepath.Base(path),
		"content":    base64.StdEncoding.EncodeToString(body),
		"timestamps": timestamps,
	})
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	if authKey != "" {
		ctx = metadata.AppendToOutgoingContext(ctx, "authorization", "Bearer "+authKey)
	}
	resp, err := server.NewParserClient(conn).Parse(ctx, req)
	if err != nil {
		return err
	}
	b, err := protojson.MarshalOptions{Multiline: true, Indent: "  "}.Marshal(resp)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
	return err
}
