package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRun_NoArgsIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run(nil))
}

func TestRun_UnknownCommandIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, run([]string{"frobnicate"}))
}

func TestRun_Help(t *testing.T) {
	assert.Equal(t, exitOK, run([]string{"help"}))
}

func TestCmdAgentsRegister_MissingFlagsIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdAgentsRegister([]string{"--project", "demo"}))
}

func TestCmdAgentsList_MissingProjectIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdAgentsList(nil))
}

func TestCmdMailSend_MissingFlagsIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdMailSend([]string{"--project", "demo"}))
}

func TestCmdFileReservations_MissingSubcommandIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdFileReservations(nil))
}

func TestCmdAcks_MissingSubcommandIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdAcks(nil))
}

func TestCmdConfigSetPort_InvalidPortIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdConfigSetPort([]string{"--config", "/tmp/does-not-matter.yaml", "not-a-port"}))
}

func TestCmdConfigSetPort_MissingConfigIsUsageError(t *testing.T) {
	assert.Equal(t, exitUsage, cmdConfigSetPort([]string{"8080"}))
}

func TestSplitCSV(t *testing.T) {
	assert.Equal(t, []string{"alice", "bob"}, splitCSV("alice, bob"))
	assert.Equal(t, []string{"alice"}, splitCSV("alice"))
	assert.Empty(t, splitCSV(""))
}
