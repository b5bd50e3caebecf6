package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/smazurov/dropzone/internal/logging"
	"github.com/smazurov/dropzone/internal/upload"
)

// CreateUploadCmd creates the upload command.
func CreateUploadCmd() *cobra.Command {
	var serverURL, mountRoot string

	cmd := &cobra.Command{
		Use:   "upload [dir]",
		Short: "Copy an export directory to the club share",
		Long:  `Copies the directory into the share configured under [server], or the one given with --server.`,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			settings, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			srv := settings.Server
			if serverURL != "" {
				srv.URL = serverURL
			}
			if mountRoot != "" {
				srv.MountRoot = mountRoot
			}

			uploader := upload.NewShareUploader(logging.GetLogger("upload"))
			ok, msg := uploader.Upload(cmd.Context(), args[0], srv)
			if !ok {
				return errors.New(msg)
			}
			fmt.Fprintln(cmd.OutOrStdout(), msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&serverURL, "server", "", "Share path or smb:// URL")
	cmd.Flags().StringVar(&mountRoot, "mount-root", "", "Local mount point of the smb share")
	return cmd
}
