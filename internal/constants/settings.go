package constants

import "time"

const (
	// Bandit workspace defaults
	DefaultTrialDirName  = "trials"
	DefaultTemplateName  = "trial0"
	DefaultJavaBinary    = "java"
	DefaultBoostSRLJar   = "boostsrl.jar"
	DefaultTrees         = 20
	DefaultOracleTimeout = 10 * time.Minute
	DefaultKeepTrials    = 10
	BanditTarget         = "recommendation"

	// Circuit breaker defaults for the classifier subprocess
	DefaultBreakerFailures = 3
	DefaultBreakerCooldown = 2 * time.Minute

	// Recommendation defaults
	DefaultRetrainEvery  = 5
	DefaultTrainFraction = 0.8
)

// Trial workspace layout. Paths are relative to the trial directory.
const (
	TrialTrainDir   = "train"
	TrialTestDir    = "test"
	TrialModelDir   = "train/models/"
	TrialTrainFacts = "train/train_facts.txt"
	TrialTrainPos   = "train/train_pos.txt"
	TrialTrainNeg   = "train/train_neg.txt"
	TrialTestFacts  = "test/test_facts.txt"
	TrialTestPos    = "test/test_pos.txt"
	TrialTestNeg    = "test/test_neg.txt"
	TrialResults    = "test/results_recommendation.db"
	TrialConfig     = "config.json"
	TrialTrainLog   = "out_train.txt"
	TrialTestLog    = "out_test.txt"
	TrialDirPrefix  = "trial-"
)
