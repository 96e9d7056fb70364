// Package google resolves the credentials meetingbroker uses to call the
// Google Calendar API.
//
// Three trust models are supported, one Credential implementation each:
//
//   - static-key: a service account key file (raw JSON, base64, or a bare PEM
//     key plus the account email), optionally impersonating a user through
//     domain-wide delegation.
//   - keyless-delegated: IAM Credentials signs a JWT assertion for the signer
//     service account and the OAuth token endpoint exchanges it for an access
//     token acting as the configured user. No private key is held in process.
//   - ambient: Application Default Credentials, never impersonating.
//
// Key material always wins. Otherwise a signer plus a subject selects
// keyless delegation, and everything else falls back to ambient identity.
// A Resolver re-resolves on every call; nothing is cached.
package google
