// Package email sends transactional email.
//
// NewPostmarkClient delivers through Postmark; NewDevSender writes each message
// to a directory as an .html body plus a .json metadata file so that local
// runs never reach a real inbox. Both implement EmailSender.
package email
