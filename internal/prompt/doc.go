// Package prompt loads generation templates and composes the final model
// prompt from a template, runtime variables, and a transcript.
//
// Composition is pure string assembly: templates use {name} placeholders that
// must all resolve, and instruction blocks (objective, transcript, output
// language, output length) are layered around the rendered template in a
// fixed order so generated prompts stay reproducible.
package prompt
