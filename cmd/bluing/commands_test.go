package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
)

// LEFlagsTestSuite provides testify/suite for proper flag isolation
type LEFlagsTestSuite struct {
	suite.Suite
	originalFlags struct {
		leTimeout      time.Duration
		leScanType     string
		leSort         string
		leLLFeature    bool
		leSMPFeature   bool
		leSniff        bool
		leSniffChannel int
		leSniffPorts   []string
		leAddrType     string
		leIOCap        string
	}
}

func (s *LEFlagsTestSuite) SetupTest() {
	s.originalFlags.leTimeout = leTimeout
	s.originalFlags.leScanType = leScanType
	s.originalFlags.leSort = leSort
	s.originalFlags.leLLFeature = leLLFeature
	s.originalFlags.leSMPFeature = leSMPFeature
	s.originalFlags.leSniff = leSniff
	s.originalFlags.leSniffChannel = leSniffChannel
	s.originalFlags.leSniffPorts = leSniffPorts
	s.originalFlags.leAddrType = leAddrType
	s.originalFlags.leIOCap = leIOCap
}

func (s *LEFlagsTestSuite) TearDownTest() {
	leTimeout = s.originalFlags.leTimeout
	leScanType = s.originalFlags.leScanType
	leSort = s.originalFlags.leSort
	leLLFeature = s.originalFlags.leLLFeature
	leSMPFeature = s.originalFlags.leSMPFeature
	leSniff = s.originalFlags.leSniff
	leSniffChannel = s.originalFlags.leSniffChannel
	leSniffPorts = s.originalFlags.leSniffPorts
	leAddrType = s.originalFlags.leAddrType
	leIOCap = s.originalFlags.leIOCap
}

func (s *LEFlagsTestSuite) TestProbeFlagsAreMutuallyExclusive() {
	// GOAL: no two primary actions can run in one invocation.
	leLLFeature = true
	leSMPFeature = true

	err := runLE(leCmd, []string{"11:22:33:44:55:66"})
	s.Require().Error(err)
	s.Contains(err.Error(), "mutually exclusive")
}

func (s *LEFlagsTestSuite) TestSniffExcludesProbes() {
	leSniff = true
	leLLFeature = true

	err := runLE(leCmd, nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "mutually exclusive")
}

func (s *LEFlagsTestSuite) TestInvalidSortKey() {
	leSort = "name"

	err := runLE(leCmd, nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid sort key")
}

func (s *LEFlagsTestSuite) TestInvalidScanType() {
	leScanType = "promiscuous"

	err := runLE(leCmd, nil)
	s.Require().Error(err)
	s.Contains(err.Error(), "invalid scan type")
}

func (s *LEFlagsTestSuite) TestInvalidTargetAddress() {
	err := runLE(leCmd, []string{"not-an-address"})
	s.Require().Error(err)
}

func (s *LEFlagsTestSuite) TestInvalidAddrType() {
	leAddrType = "static"

	err := runLE(leCmd, []string{"11:22:33:44:55:66"})
	s.Require().Error(err)
}

func (s *LEFlagsTestSuite) TestInvalidIOCapability() {
	leSMPFeature = true
	leIOCap = "telepathy"

	err := runLE(leCmd, []string{"11:22:33:44:55:66"})
	s.Require().Error(err)
}

func TestLEFlagsTestSuite(t *testing.T) {
	suite.Run(t, new(LEFlagsTestSuite))
}

func TestRunBR_LMPFeatureRequiresTarget(t *testing.T) {
	original := brLMPFeature
	defer func() { brLMPFeature = original }()
	brLMPFeature = true

	err := runBR(brCmd, nil)
	if err == nil || err.Error() != "--lmp-feature requires a BD_ADDR argument" {
		t.Fatalf("expected missing-target error, got %v", err)
	}
}
