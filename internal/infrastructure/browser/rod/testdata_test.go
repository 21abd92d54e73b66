package rod

// Pages served to the browser tests.
const (
	ArticleHTML = `<!DOCTYPE html>
<html>
<head>
	<title>Pricing Plans</title>
	<meta name="description" content="  Plans for every team  ">
	<link rel="stylesheet" href="/site.css">
	<style>body { color: red; }</style>
</head>
<body>
	<nav class="top">Home | Blog</nav>
	<main id="content">
		<h1 class="title">Pricing</h1>
		<p style="color: blue">Starter is $10 per month.</p>
		<script>window.tracking = true;</script>
	</main>
	<footer>Footer text</footer>
</body>
</html>`

	NoMainHTML = `<!DOCTYPE html>
<html>
<head><title>Plain</title></head>
<body>
	<div>First   line</div>
	<div>Second line</div>
</body>
</html>`

	SelectableHTML = `<!DOCTYPE html>
<html>
<head><title>Selectable</title></head>
<body>
	<a id="link" href="/elsewhere">Go elsewhere</a>
	<div id="card" class=" card featured ">Card body</div>
</body>
</html>`
)
