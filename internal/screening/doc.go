// Package screening holds the questionnaire definitions, the scoring engine
// and the dashboard aggregation used by the autism screening service.
//
// Everything here is a pure function of its inputs. Persistence, sessions
// and transport live in the services, api and db packages.
package screening
