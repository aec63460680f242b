// Package alerts evaluates threshold rules against the groups of every
// dataset analysis and delivers webhook notifications to Teams, Slack or a
// generic HTTP target when a rule fires or resolves.
package alerts
