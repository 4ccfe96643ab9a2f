package cmd

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"planner/pkg/poller"
)

var (
	generatePrompt   string
	generateImage    string
	generateStep     int64
	generateDuration int
	generateAspect   string
	generateRes      string
	generateNegative string
)

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Submit a free-form Veo generation",
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(generatePrompt) == "" {
			return errors.New("--prompt is required")
		}
		req := poller.GenerateRequest{Prompt: generatePrompt, StepID: generateStep}

		if generateImage != "" {
			dataURL, err := imageDataURL(generateImage)
			if err != nil {
				return err
			}
			req.Image = dataURL
		}

		config := map[string]any{}
		if generateDuration > 0 {
			config["durationSeconds"] = generateDuration
		}
		if generateAspect != "" {
			config["aspectRatio"] = generateAspect
		}
		if generateRes != "" {
			config["resolution"] = generateRes
		}
		if generateNegative != "" {
			config["negativePrompt"] = generateNegative
		}
		if len(config) > 0 {
			req.Config = config
		}

		res, err := newClient().Generate(cmd.Context(), req)
		if err != nil {
			cmd.PrintErrf("Failed to start generation: %v\n", err)
			return err
		}
		cmd.Printf("Started %s\n", res.OperationID)
		return nil
	},
}

// imageDataURL reads a local image and encodes it as a base64 data URL.
func imageDataURL(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read image: %w", err)
	}
	mimeType := mime.TypeByExtension(strings.ToLower(filepath.Ext(path)))
	if mimeType == "" {
		mimeType = http.DetectContentType(data)
	}
	if i := strings.Index(mimeType, ";"); i >= 0 {
		mimeType = mimeType[:i]
	}
	return "data:" + mimeType + ";base64," + base64.StdEncoding.EncodeToString(data), nil
}

func init() {
	generateCmd.Flags().StringVarP(&generatePrompt, "prompt", "p", "", "Prompt describing the animation")
	generateCmd.Flags().StringVarP(&generateImage, "image", "i", "", "Path to a seed image")
	generateCmd.Flags().Int64Var(&generateStep, "step", 0, "Attach the operation to this step id")
	generateCmd.Flags().IntVar(&generateDuration, "duration", 0, "Clip length in seconds (1-8)")
	generateCmd.Flags().StringVar(&generateAspect, "aspect", "", "Aspect ratio (16:9 or 9:16)")
	generateCmd.Flags().StringVar(&generateRes, "resolution", "", "Resolution (720p or 1080p)")
	generateCmd.Flags().StringVar(&generateNegative, "negative", "", "Negative prompt")
	rootCmd.AddCommand(generateCmd)
}
