// Package markserve converts documents, web pages and YouTube videos into
// text and markdown, and stores chat sessions on disk.
//
// Overview
//
// The work is split across sub-packages:
//
//   - youtube: URL normalization, subtitle fetchers, decoding, the quality
//     gate and the orchestrator that chains them
//   - convert: HTML and plain text conversion, the supported format list
//   - storage: the storage root, session records and filename sanitizing
//   - api: the HTTP endpoints
//   - mcpserver: the same operations as MCP tools
//   - config: configuration loading
//
// This package wires them together. New builds every service from a
// config.Config:
//
//	cfg, err := config.Load()
//	if err != nil {
//		log.Fatal(err)
//	}
//	svc, err := markserve.New(ctx, cfg, slog.Default())
//	if err != nil {
//		log.Fatal(err)
//	}
//	defer svc.Close()
//
//	result, err := svc.Transcripts.Transcript(ctx, "https://youtu.be/dQw4w9WgXcQ")
//	if err != nil {
//		log.Fatal(err)
//	}
//	fmt.Println(result.Text)
//
// Transcripts
//
// An orchestrator tries yt-dlp first and YouTube's caption endpoints second.
// A strategy that fails softly (network trouble, a playlist instead of
// subtitles, a track that is too short) hands over to the next one. A report
// that the video has no captions at all ends the request.
//
// Configuration
//
// Settings come from, in increasing priority:
//
//  1. Default values
//  2. Config file (MARKSERVE_CONFIG, markserve.json or
//     ~/.config/markserve/markserve.json)
//  3. Environment variables, including those from a .env file
//
// Environment variables:
//
//   - PORT, MARKSERVE_ADDR: HTTP listen address
//   - MARKSERVE_YTDLP_PATH, MARKSERVE_YTDLP_TIMEOUT: yt-dlp executable and timeout
//   - MARKSERVE_HTTP_TIMEOUT: per-attempt timeout for outbound requests
//   - MARKSERVE_MIN_TRANSCRIPT_LENGTH: shortest accepted transcript
//   - MARKSERVE_YOUTUBE_API_KEY: enables video title lookups
//   - MARKSERVE_STORAGE_CONFIG_FILE: where the storage root is remembered
//   - MARKSERVE_MAX_RETRIES, MARKSERVE_INITIAL_BACKOFF, MARKSERVE_MAX_BACKOFF,
//     MARKSERVE_BACKOFF_MULTIPLIER: retry policy
//   - MARKSERVE_LOG_LEVEL, MARKSERVE_LOG_FORMAT: logging
//
// Error Handling
//
// Sentinel errors and error types are re-exported here:
//
//	var terr *markserve.TranscriptError
//	if errors.As(err, &terr) && terr.Reason.IsCaptionAbsence() {
//		fmt.Println("video has no captions")
//	}
//
// Dependencies
//
// The primary transcript strategy needs yt-dlp in PATH or at
// MARKSERVE_YTDLP_PATH. Without it the caption endpoint strategy still
// works.
//
// Install yt-dlp: https://github.com/yt-dlp/yt-dlp
package markserve
