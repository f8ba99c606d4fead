package util

// SourceCodeRepo is the public address for this codebase
const SourceCodeRepo string = "https://github.com/sailbuild/sail"

// SourceCodeIssues is the public address for the issue tracker
const SourceCodeIssues string = "https://github.com/sailbuild/sail/issues/new"
