// Command agentmesh runs the orchestration engine against a set of
// simulated peers, mainly for trying out selection and aggregation
// strategies from the command line.
package main
