package log

import (
	"bytes"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/suite"
)

// LoggerTestSuite tests the log package
type LoggerTestSuite struct {
	suite.Suite
	originalLogger zerolog.Logger
	testOutput     *bytes.Buffer
}

func (s *LoggerTestSuite) SetupTest() {
	s.originalLogger = Logger
	s.testOutput = &bytes.Buffer{}
	Logger = newLogger(s.testOutput, zerolog.DebugLevel)
}

func (s *LoggerTestSuite) TearDownTest() {
	Logger = s.originalLogger
}

func (s *LoggerTestSuite) TestLevels() {
	Debug().Msg("debug test")
	Info().Msg("info test")
	Warn().Msg("warn test")
	Error().Msg("error test")

	output := s.testOutput.String()
	s.Contains(output, "debug test")
	s.Contains(output, "info test")
	s.Contains(output, "warn test")
	s.Contains(output, "error test")
}

func (s *LoggerTestSuite) TestFields() {
	Info().Str("config_id", "7").Int("configs_count", 3).Msg("with fields")

	output := s.testOutput.String()
	s.Contains(output, `"config_id":"7"`)
	s.Contains(output, `"configs_count":3`)
}

func (s *LoggerTestSuite) TestSetOutputKeepsLevel() {
	Logger = Logger.Level(zerolog.WarnLevel)
	other := &bytes.Buffer{}
	SetOutput(other)

	Info().Msg("hidden")
	Warn().Msg("shown")

	s.NotContains(other.String(), "hidden")
	s.Contains(other.String(), "shown")
	s.Equal(zerolog.WarnLevel, Logger.GetLevel())
}

func (s *LoggerTestSuite) TestSetDebugMode() {
	Logger = Logger.Level(zerolog.InfoLevel)
	SetDebugMode()
	s.Equal(zerolog.DebugLevel, Logger.GetLevel())
}

func TestLoggerSuite(t *testing.T) {
	suite.Run(t, new(LoggerTestSuite))
}
